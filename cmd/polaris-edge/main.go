package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"

	"github.com/perceptive-automation/polaris-edge/internal/config"
	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/display"
	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/monitor"
	"github.com/perceptive-automation/polaris-edge/internal/mqttbroker"
	"github.com/perceptive-automation/polaris-edge/internal/reconcile"
	"github.com/perceptive-automation/polaris-edge/internal/signals"
	"github.com/perceptive-automation/polaris-edge/internal/store"
	"github.com/perceptive-automation/polaris-edge/internal/syncer"
)

func main() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	log := logger.New(logLevel)
	defer func(logger *zap.SugaredLogger) {
		_ = logger.Sync()
	}(log)

	zap.S().Debug("Checking environment variables")
	brokerURL, err := env.GetAsString("BROKER_URL", true, "")
	if err != nil {
		zap.S().Fatal(err)
	}
	certDir, err := env.GetAsString("CERT_DIR", false, "")
	if err != nil {
		zap.S().Error(err)
	}
	configPath, err := env.GetAsString("CONFIG_PATH", false, "/data/settings.yaml")
	if err != nil {
		zap.S().Error(err)
	}
	dbPath, err := env.GetAsString("DB_PATH", false, "/data/polaris.db")
	if err != nil {
		zap.S().Error(err)
	}
	queuePath, err := env.GetAsString("QUEUE_PATH", false, "/data/queue")
	if err != nil {
		zap.S().Error(err)
	}
	updateRateMs, err := env.GetAsInt("UPDATE_RATE_MS", false, 500)
	if err != nil {
		zap.S().Error(err)
	}
	syncRateMs, err := env.GetAsInt("SYNC_RATE_MS", false, 3000)
	if err != nil {
		zap.S().Error(err)
	}

	settings, err := config.Load(configPath)
	if err != nil {
		zap.S().Fatalf("Error loading settings: %s", err)
	}
	if settings.Device.SerialNumber == "" || settings.Device.TeamID == "" {
		zap.S().Fatalf("Device serial number and team id must be set in %s", configPath)
	}

	zap.S().Debug("Setting up database")
	st, err := store.Open(dbPath)
	if err != nil {
		zap.S().Fatalf("Error opening local store: %s", err)
	}
	if err = st.AddLogEntry(models.LogStatus, "Program started"); err != nil {
		zap.S().Errorf("Status log unavailable: %s", err)
	}

	state := device.NewState(
		settings.Main.SelectedProductID,
		settings.Main.SelectedOperatorID,
		settings.Main.GoalCPH)

	// The UI process attaches its own notifier; headless devices run with
	// the no-op one.
	var notifier display.Notifier = display.Nop{}

	// The broker session is created after the handlers, so publishes made
	// from inbound handlers go through the holder.
	pub := &publisherHolder{}
	engine := reconcile.NewEngine(st, state, notifier, settings, pub)
	batcher := syncer.NewBatcher(st, state, settings, pub)
	dispatcher := reconcile.NewDispatcher(engine, batcher, st)

	zap.S().Debug("Setting up MQTT")
	session, err := mqttbroker.Connect(mqttbroker.Options{
		BrokerURL: brokerURL,
		ClientID:  settings.Device.SerialNumber,
		CertDir:   certDir,
		SubscribeTopics: []string{
			settings.Device.TeamID + "/" + settings.Device.SerialNumber + "/" + models.DirServerRequest + "/#",
			settings.Device.TeamID + "/" + settings.Device.SerialNumber + "/" + models.DirServerResponse + "/#",
		},
		QueuePath: queuePath,
	}, dispatcher.HandleMessage)
	if err != nil {
		zap.S().Fatalf("Error setting up MQTT: %s", err)
	}
	pub.set(session)

	zap.S().Debug("Starting healthcheck")
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(100))
	health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(st.DB(), 1*time.Second))
	health.AddReadinessCheck("mqtt-check", func() error {
		if session.IsConnected() {
			return nil
		}
		return errNotConnected
	})
	go func() {
		/* #nosec G114 */
		if err := http.ListenAndServe("0.0.0.0:8086", health); err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		/* #nosec G114 */
		if err := http.ListenAndServe(":2112", nil); err != nil {
			zap.S().Errorf("Error starting metrics endpoint: %s", err)
		}
	}()

	mon := monitor.New(st, state, notifier)
	done := make(chan struct{})

	go runMonitorLoop(mon, time.Duration(updateRateMs)*time.Millisecond, done)
	go runSyncLoop(batcher, time.Duration(syncRateMs)*time.Millisecond, done)

	if inputs := signalInputs(); len(inputs) > 0 {
		recorder := signals.NewRecorder(st, state, inputs)
		go runSignalLoop(recorder, done)
	}

	// Ask the server for the full reference dataset once at startup.
	batcher.AnnounceResync()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigs
	zap.S().Infof("Received %s, shutting down", sig)

	close(done)
	session.Disconnect()
	if err = st.Close(); err != nil {
		zap.S().Errorf("Error closing local store: %s", err)
	}
	zap.S().Info("Successful shutdown. Exiting.")
}

// runMonitorLoop drives the running-state monitor on the fast cadence,
// feeding it the real elapsed time between ticks.
func runMonitorLoop(mon *monitor.Monitor, interval time.Duration, done chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			mon.Tick(now.Sub(last))
			last = now
		}
	}
}

// runSyncLoop drives the heartbeat and the outbound batch on the slow
// cadence.
func runSyncLoop(batcher *syncer.Batcher, interval time.Duration, done chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			batcher.Heartbeat()
			batcher.Pass()
		}
	}
}

// signalInputs builds the sampled inputs from the environment. The files
// are mirrors of the physical pins, written by the I/O daemon.
func signalInputs() []*signals.Input {
	var inputs []*signals.Input
	if path, _ := env.GetAsString("RUNNING_SIGNAL_FILE", false, ""); path != "" { //nolint:errcheck
		inputs = append(inputs, &signals.Input{Sampler: signals.FileSampler(path)})
	}
	if path, _ := env.GetAsString("GOOD_COUNT_FILE", false, ""); path != "" { //nolint:errcheck
		inputs = append(inputs, &signals.Input{TagName: "Good", Sampler: signals.FileSampler(path), RisingOnly: true})
	}
	if path, _ := env.GetAsString("REJECT_COUNT_FILE", false, ""); path != "" { //nolint:errcheck
		inputs = append(inputs, &signals.Input{TagName: "Reject", Sampler: signals.FileSampler(path), RisingOnly: true})
	}
	return inputs
}

func runSignalLoop(recorder *signals.Recorder, done chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			recorder.Tick()
		}
	}
}
