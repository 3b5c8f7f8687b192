package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/voicelink/internal/gesture"
	"github.com/normanking/voicelink/internal/voice"
)

var (
	replayLang       string
	replayVocabulary string
	replayThreshold  float64
	replayHold       time.Duration
	replayCooldown   time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay <trace.yaml>",
	Short: "Run a gesture trace through the recognizer",
	Long: `Feeds recorded classifier frames through the heuristic detector and
the stabilizer, printing every state change and spoken phrase.

A trace lists frames with a timestamp in milliseconds, the classifier
label and score, and the 21 hand landmarks. A frame without a complete
hand counts as no gesture:

  frames:
    - t: 0
      label: Thumb_Up
      confidence: 0.9
      landmarks: [{x: 0.5, y: 0.9, z: 0}, ...]

Examples:
  voicelinkctl replay trace.yaml
  voicelinkctl replay trace.yaml --lang hi-IN --hold 600ms`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	def := gesture.DefaultConfig()
	replayCmd.Flags().StringVar(&replayLang, "lang", "en-US", "Display language (en-US or hi-IN)")
	replayCmd.Flags().StringVar(&replayVocabulary, "vocabulary", "", "YAML vocabulary override")
	replayCmd.Flags().Float64Var(&replayThreshold, "threshold", def.ConfidenceThreshold, "Confidence threshold")
	replayCmd.Flags().DurationVar(&replayHold, "hold", def.HoldDuration, "Hold duration")
	replayCmd.Flags().DurationVar(&replayCooldown, "cooldown", def.Cooldown, "Per-label cooldown")
}

// traceFrame is one recorded classifier output.
type traceFrame struct {
	T          int64              `yaml:"t"`
	Label      string             `yaml:"label"`
	Confidence float64            `yaml:"confidence"`
	Landmarks  []gesture.Landmark `yaml:"landmarks,omitempty"`
}

type traceFile struct {
	Frames []traceFrame `yaml:"frames"`
}

func parseTrace(data []byte) ([]traceFrame, error) {
	var tf traceFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	if len(tf.Frames) == 0 {
		return nil, fmt.Errorf("parse trace: no frames")
	}
	return tf.Frames, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		printError("Trace could not be read", err)
		return err
	}
	frames, err := parseTrace(data)
	if err != nil {
		return err
	}

	lang, err := voice.ParseLanguage(replayLang)
	if err != nil {
		return err
	}

	vocab := gesture.DefaultVocabulary()
	if replayVocabulary != "" {
		vocab, err = gesture.LoadVocabulary(replayVocabulary)
		if err != nil {
			return err
		}
	}

	stab := gesture.NewStabilizer(gesture.Config{
		ConfidenceThreshold: replayThreshold,
		HoldDuration:        replayHold,
		Cooldown:            replayCooldown,
	}, vocab)
	stab.SetLanguage(lang)

	spoken := replay(cmd.OutOrStdout(), frames, stab, lang)
	fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("%d frames, %d phrases spoken", len(frames), spoken)))
	return nil
}

// replay steps the stabilizer through frames and prints state changes and
// events. It returns the number of events.
func replay(w io.Writer, frames []traceFrame, stab *gesture.Stabilizer, lang voice.Language) int {
	var lastState gesture.State
	var lastDisplay string
	spoken := 0

	for _, f := range frames {
		sample := gesture.Resolve(gesture.Classification{
			Label:      f.Label,
			Confidence: f.Confidence,
			Landmarks:  f.Landmarks,
		}, f.T)
		res := stab.Step(sample)

		if verbose || res.State != lastState || res.Display != lastDisplay {
			src := ""
			if !gesture.HandLandmarks(f.Landmarks).Valid() {
				src = " (no hand)"
			} else if _, ok := gesture.DetectHeuristic(f.Landmarks); ok {
				src = " (heuristic)"
			}
			fmt.Fprintf(w, "%6dms  %-9s %-12s %s%s\n", f.T, res.State, sample.Label, res.Display, src)
		}
		if res.Event != nil {
			spoken++
			fmt.Fprintln(w, eventStyle.Render(fmt.Sprintf("%6dms  speak %q", res.Event.TimestampMs, res.Event.Text(lang))))
		}
		lastState, lastDisplay = res.State, res.Display
	}
	return spoken
}
