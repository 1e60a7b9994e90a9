package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/controls"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/wakeword"
	"github.com/koscakluka/ema-assistant/internal/config"
	"github.com/koscakluka/ema-assistant/internal/metrics"
	"github.com/koscakluka/ema-assistant/internal/telemetry"
	"github.com/koscakluka/ema-assistant/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	flagTUI = "tui"

	defaultTUILogFile = "ema-assistant.log"
	shutdownTimeout   = 5 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the voice assistant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		configPath, err := cmd.Flags().GetString(flagConfig)
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed(flagTUI) {
			if cfg.UI.TUI, err = cmd.Flags().GetBool(flagTUI); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTelemetry, err := setupTelemetry(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
			}
		}()

		return runAssistant(ctx, cfg)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().Bool(flagTUI, false, "Show the interactive status screen")
	}
	rootCmd.AddCommand(runCmd)
}

func setupTelemetry(ctx context.Context, cfg *config.Config) (telemetry.ShutdownFunc, error) {
	var logWriter io.Writer = os.Stderr
	var logFile *os.File

	logPath := cfg.Telemetry.LogFile
	if logPath == "" && cfg.UI.TUI {
		logPath = defaultTUILogFile
	}
	if logPath == "" && !cfg.UI.TUI && controls.IsTerminal() {
		logWriter = controls.RawModeWriter(os.Stderr)
	}
	if logPath != "" {
		f, err := telemetry.OpenLogFile(logPath)
		if err != nil {
			return nil, err
		}
		logWriter, logFile = f, f
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		LogWriter:    logWriter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}
	if logFile == nil {
		return shutdown, nil
	}
	return func(ctx context.Context) error {
		return errors.Join(shutdown(ctx), logFile.Close())
	}, nil
}

func runAssistant(ctx context.Context, cfg *config.Config) error {
	device, err := newAudioDevice(cfg)
	if err != nil {
		return err
	}
	defer device.Close()

	var gatewayOpts []audio.GatewayOption
	if cfg.Audio.ClipsDir != "" {
		gatewayOpts = append(gatewayOpts, audio.WithClipsDir(cfg.Audio.ClipsDir))
	}
	gateway := audio.NewGateway(device, gatewayOpts...)

	httpClient := newHTTPClient(cfg.Loop.HTTPTimeout.Std())
	tokens := newTokenSource(cfg, httpClient)
	speechToText, err := newSpeechToText(cfg, tokens, httpClient)
	if err != nil {
		return err
	}
	textToSpeech, err := newTextToSpeech(cfg, tokens, httpClient, device.EncodingInfo())
	if err != nil {
		return err
	}

	manualWake := wakeword.NewManual()
	orchestratorOpts := []orchestration.OrchestratorOption{
		orchestration.WithWakeDetector(newWakeDetector(cfg, device, manualWake)),
		orchestration.WithAudioGateway(gateway),
		orchestration.WithSpeechToTextClient(speechToText),
		orchestration.WithTextToSpeechClient(textToSpeech),
		orchestration.WithConversationStarter(newConversationStarter(cfg, httpClient)),
		orchestration.WithStepTimeout(cfg.Loop.StepTimeout.Std()),
		orchestration.WithWakeRetryDelay(cfg.Loop.WakeRetryDelay.Std()),
	}
	if cfg.Audio.WelcomeClip != "" {
		welcome, err := audio.LoadClip(cfg.Audio.WelcomeClip)
		if err != nil {
			return fmt.Errorf("load welcome clip: %w", err)
		}
		orchestratorOpts = append(orchestratorOpts, orchestration.WithWelcomeClip(welcome))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	recorder := metrics.NewRecorder()
	if cfg.Metrics.Addr != "" {
		group.Go(func() error { return recorder.Serve(ctx, cfg.Metrics.Addr) })
	}

	onEvent := recorder.Record
	var onState func(orchestration.State)
	if cfg.UI.TUI {
		button := controls.NewChannelButton()
		orchestratorOpts = append(orchestratorOpts, orchestration.WithButton(button))

		program := tea.NewProgram(
			tui.NewModel(tui.Actions{Press: button.Press, Wake: manualWake.Trigger, Quit: cancel}),
			tea.WithContext(ctx),
			tea.WithAltScreen(),
		)
		observer := tui.NewObserver(program)
		onEvent = func(event events.Event) {
			recorder.Record(event)
			observer.OnEvent(event)
		}
		onState = observer.OnState

		group.Go(func() error {
			defer cancel()
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		})
	} else {
		terminal := controls.NewTerminal(
			controls.WithKey('w', manualWake.Trigger),
			controls.WithInterrupt(cancel),
		)
		orchestratorOpts = append(orchestratorOpts, orchestration.WithButton(terminal))
		group.Go(func() error { return terminal.Run(ctx) })
	}

	orchestrator := orchestration.NewOrchestrator(orchestratorOpts...)
	group.Go(func() error {
		err := orchestrator.Run(ctx,
			orchestration.WithEventCallback(onEvent),
			orchestration.WithStateCallback(onState),
		)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return group.Wait()
}
