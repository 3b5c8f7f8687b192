// VoiceLink - an AAC bridge that speaks for its user
package main

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"

	"github.com/normanking/voicelink/internal/bridge"
	"github.com/normanking/voicelink/internal/bus"
	"github.com/normanking/voicelink/internal/config"
	"github.com/normanking/voicelink/internal/cue"
	"github.com/normanking/voicelink/internal/gesture"
	"github.com/normanking/voicelink/internal/live"
	"github.com/normanking/voicelink/internal/logging"
	"github.com/normanking/voicelink/internal/signgen"
	"github.com/normanking/voicelink/internal/speech"
	"github.com/normanking/voicelink/internal/store"
	"github.com/normanking/voicelink/internal/stt"
	"github.com/normanking/voicelink/internal/tts"
	"github.com/normanking/voicelink/internal/vision"
)

//go:embed all:frontend/dist
var assets embed.FS

// Global logger instance
var syslog *logging.Logger

// forwardedEvents are relayed from the bus to the frontend.
var forwardedEvents = []bus.EventType{
	bus.EventTypeSpeechStarted,
	bus.EventTypeSpeechCompleted,
	bus.EventTypeSpeechCancelled,
	bus.EventTypeSpeechFailed,
	bus.EventTypeCameraStarted,
	bus.EventTypeCameraStopped,
	bus.EventTypeCameraError,
	bus.EventTypeGestureDisplay,
	bus.EventTypeGestureRecognized,
	bus.EventTypeListeningStarted,
	bus.EventTypeListeningStopped,
	bus.EventTypeTranscript,
	bus.EventTypeListenError,
	bus.EventTypeSignFailed,
	bus.EventTypeLiveStatus,
}

// loadEnvFile loads keys from ~/.voicelink/.env into the process
// environment and returns the keys it set. Variables already set win.
func loadEnvFile() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	file, err := os.Open(filepath.Join(home, ".voicelink", ".env"))
	if err != nil {
		return nil
	}
	defer file.Close()

	var loaded []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
			loaded = append(loaded, key)
		}
	}
	return loaded
}

func main() {
	envKeys := loadEnvFile()

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		cfg = config.DefaultConfig()
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Console = cfg.Log.Console
	var err error
	syslog, err = logging.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer syslog.Close()

	syslog.Info("main", "VoiceLink starting", map[string]interface{}{"version": version})
	if len(envKeys) > 0 {
		syslog.Info("env", "Loaded environment variables", map[string]interface{}{
			"keys": strings.Join(envKeys, ", "),
		})
	}
	if cfgErr != nil {
		syslog.Warn("config", "Failed to load config, using defaults", map[string]interface{}{
			"error": cfgErr.Error(),
		})
	}
	configDir, _ := config.GetConfigDir()

	app, err := newApp(cfg, configDir)
	if err != nil {
		syslog.Error("main", "Startup failed", err, nil)
		os.Exit(1)
	}

	assetFS, err := fs.Sub(assets, "frontend/dist")
	if err != nil {
		syslog.Error("assets", "Failed to get assets", err, nil)
		os.Exit(1)
	}

	appOptions := &options.App{
		Title:     cfg.Window.Title,
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		MinWidth:  360,
		MinHeight: 560,
		AssetServer: &assetserver.Options{
			Assets: assetFS,
		},
		AlwaysOnTop:      cfg.Window.AlwaysOnTop,
		BackgroundColour: &options.RGBA{R: 248, G: 250, B: 252, A: 255},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind:             app.bindings(),
		Mac: &mac.Options{
			TitleBar: mac.TitleBarHiddenInset(),
			About: &mac.AboutInfo{
				Title:   "VoiceLink",
				Message: "Speech, gesture and sign support for conversations\nVersion " + version,
			},
			Preferences: &mac.Preferences{
				TabFocusesLinks:        mac.Enabled,
				TextInteractionEnabled: mac.Enabled,
				FullscreenEnabled:      mac.Enabled,
			},
		},
	}

	if err := wails.Run(appOptions); err != nil {
		syslog.Error("wails", "Wails.Run failed", err, nil)
		os.Exit(1)
	}
	syslog.Info("main", "Application exited normally", nil)
}

const version = "1.0.0"

// App wires the components together and owns their lifetime
type App struct {
	cfg       *config.Config
	configDir string
	eventBus  *bus.EventBus

	store    *store.Store
	cues     *cue.Service
	coord    *speech.Coordinator
	session  *vision.Session
	listener *stt.Listener
	signs    *signgen.Service
	assist   *live.Session
	mic      *live.PortAudioMic
	speaker  *cue.PortAudioPlayer
	watcher  *config.Watcher

	forwarder    *bridge.EventForwarder
	recognizer   *bridge.WebRecognizer
	speech       *bridge.SpeechBridge
	gesture      *bridge.GestureBridge
	settings     *bridge.SettingsBridge
	conversation *bridge.ConversationBridge
	live         *bridge.LiveBridge
	logs         *bridge.LogBridge
}

func newApp(cfg *config.Config, configDir string) (*App, error) {
	eventBus := bus.NewEventBus()

	engine, err := tts.NewEngine(tts.Config{
		Engine:      cfg.TTS.Engine,
		EspeakPath:  cfg.TTS.EspeakPath,
		BaseRateWPM: cfg.TTS.BaseRateWPM,
	}, syslog.Component("tts"))
	if err != nil {
		return nil, err
	}
	voices := tts.NewVoiceCache(engine, syslog.Zerolog())
	coord := speech.NewCoordinator(engine, voices, eventBus, syslog.Zerolog())

	cues := cue.NewService(cue.NewPortAudioPlayer(), cfg.Cue, syslog.Zerolog())

	db, err := store.Open(store.Options{Dir: cfg.Store.Dir}, syslog.Zerolog())
	if err != nil {
		syslog.Warn("store", "Falling back to in-memory store", map[string]interface{}{"error": err.Error()})
		db, err = store.Open(store.Options{InMemory: true}, syslog.Zerolog())
		if err != nil {
			return nil, err
		}
	}

	vocab := gesture.DefaultVocabulary()
	if cfg.Gesture.VocabularyPath != "" {
		if v, err := gesture.LoadVocabulary(cfg.Gesture.VocabularyPath); err != nil {
			syslog.Warn("gesture", "Using built-in vocabulary", map[string]interface{}{"error": err.Error()})
		} else {
			vocab = v
		}
	}

	a := &App{cfg: cfg, configDir: configDir, eventBus: eventBus, store: db, cues: cues, coord: coord}

	// settingsBridge is created after the components it configures, so
	// reads go through this closure.
	currentSettings := func() speech.Settings {
		if a.settings == nil {
			return speech.FromConfig(cfg.Settings)
		}
		return a.settings.Speech()
	}

	announcer := speech.NewAnnouncer(coord, cues, currentSettings)
	camera := vision.NewBridgeCamera(syslog.Zerolog())
	factory := vision.NewRemoteFactory(cfg.Vision.ClassifierURL, syslog.Zerolog())
	a.session = vision.NewSession(camera, factory, vocab, announcer, vision.SessionConfigFrom(cfg), eventBus, syslog.Zerolog())

	a.recognizer = bridge.NewWebRecognizer()
	a.listener = stt.NewListener(a.recognizer, stt.Config{
		RestartDelay: cfg.Listen.RestartDelay,
		Language:     cfg.Settings.Language,
	}, eventBus, syslog.Zerolog())

	var gen signgen.Generator
	if g, err := signgen.NewGeminiGenerator(context.Background(), cfg.SignGen.APIKey, cfg.SignGen.Model); err != nil {
		if !errors.Is(err, signgen.ErrNoAPIKey) {
			syslog.Warn("signgen", "Sign generator unavailable", map[string]interface{}{"error": err.Error()})
		}
	} else {
		gen = g
	}
	a.signs = signgen.NewService(gen, cfg.SignGen.Debounce, cfg.SignGen.CacheSize, eventBus, syslog.Zerolog())

	var connector live.Connector
	if c, err := live.NewGeminiConnector(context.Background(), cfg.SignGen.APIKey, cfg.Live.Model); err != nil {
		if !errors.Is(err, live.ErrNoAPIKey) {
			syslog.Warn("live", "Live assistant unavailable", map[string]interface{}{"error": err.Error()})
		}
		connector = live.Offline{Err: err}
	} else {
		connector = c
	}
	a.mic = live.NewPortAudioMic()
	a.speaker = cue.NewPortAudioPlayer()
	a.assist = live.NewSession(connector, a.mic, a.speaker, cues, eventBus, syslog.Zerolog())

	a.forwarder = bridge.NewEventForwarder(eventBus, forwardedEvents)
	a.speech = bridge.NewSpeechBridge(coord, voices, currentSettings, syslog.Zerolog())
	a.gesture = bridge.NewGestureBridge(a.session, camera, syslog.Zerolog())
	a.settings = bridge.NewSettingsBridge(cfg, configDir, bridge.SettingsTargets{
		Gesture:  a.session,
		Listener: a.listener,
		Cues:     cues,
		Signs:    a.signs,
		Profiles: db,
	}, eventBus, syslog.Zerolog())
	a.conversation = bridge.NewConversationBridge(bridge.ConversationDeps{
		Speaker:    coord,
		Cues:       cues,
		Listener:   a.listener,
		Recognizer: a.recognizer,
		Signs:      a.signs,
		Store:      db,
		Settings:   currentSettings,
		EventBus:   eventBus,
	}, syslog.Zerolog())
	a.live = bridge.NewLiveBridge(a.assist, a.conversation, db, currentSettings, syslog.Zerolog())
	a.logs = bridge.NewLogBridge(syslog)

	return a, nil
}

func (a *App) bindings() []interface{} {
	return []interface{}{
		a,
		a.speech,
		a.gesture,
		a.settings,
		a.conversation,
		a.live,
		a.logs,
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.forwarder.Bind(ctx)
	a.recognizer.Bind(ctx)
	a.speech.Bind(ctx)
	a.gesture.Bind(ctx)
	a.settings.Bind(ctx)
	a.conversation.Bind(ctx)
	a.live.Bind(ctx)
	a.logs.Bind(ctx)

	if err := a.conversation.Restore(ctx); err != nil {
		syslog.Warn("store", "Could not restore conversation", map[string]interface{}{"error": err.Error()})
	}

	if a.configDir != "" {
		w, err := config.Watch(a.configDir, syslog.Zerolog(), a.settings.Reload)
		if err != nil {
			syslog.Warn("config", "Config watch disabled", map[string]interface{}{"error": err.Error()})
		} else {
			a.watcher = w
		}
	}

	go func() {
		if err := a.speech.RefreshVoices(); err == nil {
			syslog.Debug("tts", "Voice list loaded", nil)
		}
	}()

	syslog.Info("lifecycle", "Startup complete", nil)
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.session.Stop()
	a.assist.Stop()
	if err := a.mic.Close(); err != nil {
		syslog.Warn("live", "Microphone shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := a.speaker.Close(); err != nil {
		syslog.Warn("live", "Audio shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	a.listener.Stop()
	a.coord.Stop()
	a.signs.Close()
	if err := a.cues.Close(); err != nil {
		syslog.Warn("cue", "Audio shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := a.store.Close(); err != nil {
		syslog.Error("store", "Store close failed", err, nil)
	}
	syslog.Info("lifecycle", "VoiceLink shutdown complete", nil)
}

// GetVersion returns the application version
func (a *App) GetVersion() string {
	return version
}
