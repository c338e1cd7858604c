package experiment

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sergev/libet/block"
	"github.com/sergev/libet/frameclock"
	"github.com/sergev/libet/logger"
	"github.com/sergev/libet/screen"
	"github.com/sergev/libet/sink"
	"github.com/sergev/libet/trial"
	"github.com/sergev/libet/trigger"
)

var participantID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an experiment session",
	Long: "Run a session of the selected experiment: training blocks, then the main\n" +
		"blocks in random order. Results go to one CSV file per condition.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err := runSession(ctx)
		if block.Quit(err) {
			fmt.Printf("Session stopped by participant.\n")
			return
		}
		cobra.CheckErr(err)
	},
}

func init() {
	runCmd.Flags().StringVarP(&participantID, "participant", "i", "", "participant ID (digits)")
	rootCmd.AddCommand(runCmd)
}

func runSession(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)

	// Select experiment
	profile, err := conf.GetProfile(profileName)
	if profileName == "" && len(conf.Profile) > 1 {
		profile, err = selectProfile(conf, reader, os.Stdout)
	}
	if err != nil {
		return err
	}

	participant := participantID
	if participant == "" {
		participant, err = askParticipant(reader, os.Stdout)
		if err != nil {
			return err
		}
	} else if err := checkParticipant(participant); err != nil {
		return err
	}

	csvOpener, err := sink.NewCSVOpener(conf.DataDir, profile.FilePrefix)
	if err != nil {
		return err
	}

	// The terminal is busy with the clock: log to a file next to the data
	if logFile == "" {
		path := filepath.Join(conf.DataDir, fmt.Sprintf("%s_%s.log", profile.FilePrefix, participant))
		if err := logger.Configure(logLevel, path); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	}
	log := logger.New("run")

	dev, err := trigger.Open(conf.Trigger.Driver, trigger.Options{
		Port:  conf.Trigger.Port,
		Baud:  conf.Trigger.Baud,
		Pulse: conf.Trigger.Pulse,
	})
	if err != nil {
		return fmt.Errorf("failed to open trigger device: %w", err)
	}
	defer dev.Close()
	if conf.Trigger.Port != "" {
		dev.PrintStatus()
	}

	sessionID := uuid.New().String()
	var sinks sink.Opener = csvOpener
	if conf.MQTT.Broker != "" {
		mirror, err := sink.DialMQTT(conf.MQTT.Broker, conf.MQTT.ClientID, conf.MQTT.Topic, sessionID)
		if err != nil {
			return err
		}
		defer mirror.Disconnect()
		sinks = sink.TeeOpener{csvOpener, mirror}
	}

	fmt.Printf("Data files: %s\n", csvOpener.Path(participant, "<condition>"))
	fmt.Print("Press Enter when ready...")
	_, _ = reader.ReadString('\n')

	term, err := screen.OpenTerminal(conf.Display.RefreshHz)
	if err != nil {
		return err
	}
	defer term.Close()

	clock, err := frameclock.Measure(ctx, term, conf.Display.FrameSamples, profile.FullRotation)
	if err != nil {
		return err
	}
	log.Info("frame clock", "rate", clock.FrameRateHz, "step", clock.DegreesPerFrame)

	timer := screen.SystemTimer{}
	machine := trial.New(trialSettings(conf, profile, clock), trial.Env{
		Surface:  term,
		Keyboard: term,
		Timer:    timer,
		Trigger:  dev,
		Log:      logger.New("trial"),
	})
	runner := block.NewRunner(blockSettings(conf, profile, participant), machine, block.Env{
		Surface:  term,
		Keyboard: term,
		Timer:    timer,
		Sinks:    sinks,
	})
	session := block.NewSession(runner, sessionPlan(profile))
	session.ID = sessionID

	log.Info("session", "id", session.ID, "profile", profile.Name, "participant", participant)
	err = session.Run(ctx)
	switch {
	case err == nil:
		log.Info("session complete", "blocks", session.Completed())
	case errors.Is(err, trial.ErrQuit):
		log.Warn("session stopped by participant", "blocks", session.Completed())
	default:
		log.Error("session failed", "err", err)
	}
	return err
}
