package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/voicelink/internal/tts"
	"github.com/normanking/voicelink/internal/voice"
)

var (
	voicesLang      string
	voicesGender    string
	voicesOverride  string
	voicesInventory string
	voicesEngine    string
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "Rank voices for a language and persona",
	Long: `Lists the voices VoiceLink would consider for a language, scored
for the persona, and marks the one it would speak with.

Examples:
  voicelinkctl voices --lang hi-IN --gender female
  voicelinkctl voices --inventory voices.yaml --lang en-US --gender male
  voicelinkctl voices --engine espeak`,
	RunE: runVoices,
}

func init() {
	rootCmd.AddCommand(voicesCmd)

	voicesCmd.Flags().StringVar(&voicesLang, "lang", "en-US", "Language (en-US or hi-IN)")
	voicesCmd.Flags().StringVar(&voicesGender, "gender", "female", "Persona (male or female)")
	voicesCmd.Flags().StringVar(&voicesOverride, "voice", "", "Manual voice URI override")
	voicesCmd.Flags().StringVar(&voicesInventory, "inventory", "", "YAML voice list instead of the local engine")
	voicesCmd.Flags().StringVar(&voicesEngine, "engine", "say", "Local engine (say or espeak)")
}

// inventoryFile is a saved voice list, for reproducing another machine.
type inventoryFile struct {
	Voices []voice.Descriptor `yaml:"voices"`
}

func loadInventory(path string) ([]voice.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inv inventoryFile
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	return inv.Voices, nil
}

func runVoices(cmd *cobra.Command, args []string) error {
	lang, err := voice.ParseLanguage(voicesLang)
	if err != nil {
		return err
	}
	persona, err := voice.ParsePersona(voicesGender)
	if err != nil {
		return err
	}

	var available []voice.Descriptor
	if voicesInventory != "" {
		available, err = loadInventory(voicesInventory)
		if err != nil {
			printError("Inventory could not be read", err)
			return err
		}
	} else {
		logger := zerolog.Nop()
		if verbose {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
		}
		engine, err := tts.NewEngine(tts.Config{Engine: voicesEngine, EspeakPath: "espeak-ng"}, logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		available, err = engine.ListVoices(ctx)
		if err != nil {
			printError("Voices could not be listed", err)
			return err
		}
	}

	req := voice.Request{Language: lang, Persona: persona, OverrideURI: voicesOverride}
	writeVoiceReport(cmd.OutOrStdout(), available, req)
	return nil
}

// writeVoiceReport prints the ranked candidates and the selection.
func writeVoiceReport(w io.Writer, available []voice.Descriptor, req voice.Request) {
	ranked := voice.Rank(voice.Candidates(available, req.Language), req)
	selected, ok := voice.Select(available, req)

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d voices, %d candidates for %s/%s", len(available), len(ranked), req.Language, req.Persona)))
	for _, r := range ranked {
		line := fmt.Sprintf("%5d  %-40s %-8s %s", r.Score, r.Name, r.LanguageTag, r.URI)
		if ok && r.URI == selected.URI {
			fmt.Fprintln(w, selectedStyle.Render("* "+line))
			continue
		}
		fmt.Fprintln(w, "  "+line)
	}

	switch {
	case !ok:
		fmt.Fprintln(w, mutedStyle.Render("no voice selected, the engine default will speak"))
	case req.OverrideURI != "" && selected.URI == req.OverrideURI:
		fmt.Fprintln(w, selectedStyle.Render("override: "+selected.Name))
	default:
		fmt.Fprintln(w, selectedStyle.Render("selected: "+selected.Name))
	}
}
