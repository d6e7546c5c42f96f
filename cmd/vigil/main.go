package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vigilhq/vigil/internal/api"
	"github.com/vigilhq/vigil/internal/biz"
	"github.com/vigilhq/vigil/internal/biz/usecase"
	"github.com/vigilhq/vigil/internal/conf"
	"github.com/vigilhq/vigil/internal/data"
	"github.com/vigilhq/vigil/internal/detector"
	"github.com/vigilhq/vigil/internal/infra/email"
	"github.com/vigilhq/vigil/internal/infra/feishu"
	"github.com/vigilhq/vigil/internal/logging"
	"github.com/vigilhq/vigil/internal/server"
	"github.com/vigilhq/vigil/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(cfg.Debug)

	// Open stores
	stores, err := data.NewStores(cfg.Store.DBPath)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer stores.Close()
	fmt.Printf("[Vigil] Database: %s\n", cfg.Store.DBPath)

	// Initialize usecase layer
	uc := &biz.Usecases{
		Definitions: usecase.NewDefinitionUsecase(stores.Definitions),
		Admission:   usecase.NewAdmissionUsecase(stores.Budget, cfg.Budget.ToBudgetPolicy()),
		Delivery:    usecase.NewDeliveryUsecase(stores.Pending, cfg.Delivery.ToDeliveryPolicy()),
		Cooldown:    usecase.NewCooldownTracker(time.Duration(cfg.Monitor.CooldownMinutes) * time.Minute),
	}

	// Feishu client delivers alerts and receives commands
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	notifier := data.NewFeishuNotifier(feishuClient, cfg.Feishu.AlertChatID)

	// Built-in detectors
	detectors := buildDetectors(cfg)
	for _, d := range detectors {
		fmt.Printf("[Vigil] Detector enabled: %s\n", d.Name())
	}

	// Monitor loop
	monitor := service.NewMonitor(uc, detectors, notifier, cfg.Templates, logger,
		time.Duration(cfg.Monitor.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Monitor.DetectorTimeoutSeconds)*time.Second)

	if cfg.Email.Enabled() {
		emailClient := email.NewClient(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.To)
		monitor.SetEscalationNotifier(data.NewEmailNotifier(emailClient, cfg.Templates.FormatEmailSubject))
		fmt.Println("[Vigil] Email escalation enabled for urgent alerts")
	}

	// HTTP admin API for vigil-status and vigil-mcp
	apiServer := api.NewServer(uc, monitor, cfg.API.Port)
	go func() {
		if err := apiServer.Start(); err != nil {
			fmt.Printf("[Vigil] API server error: %v\n", err)
		}
	}()

	// Feishu command server
	srv := server.NewFeishuServer(feishuClient, uc)

	ctx, cancel := context.WithCancel(context.Background())
	monitor.Start(ctx)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		srv.Stop()
		apiServer.Stop()
		monitor.Stop()
		cancel()
		os.Exit(0)
	}()

	fmt.Println("Starting Vigil alert daemon...")
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// buildDetectors assembles the detectors the config enables
func buildDetectors(cfg *conf.Config) []detector.Detector {
	var detectors []detector.Detector

	if len(cfg.Detectors.DiskPaths) > 0 {
		detectors = append(detectors, detector.NewDiskDetector(cfg.Detectors.DiskPaths))
	}
	if len(cfg.Detectors.SystemdUnits) > 0 {
		detectors = append(detectors, detector.NewSystemdDetector(cfg.Detectors.SystemdUnits))
	}
	if cfg.Detectors.ThermalWarnC > 0 {
		detectors = append(detectors, detector.NewThermalDetector(cfg.Detectors.ThermalWarnC, cfg.Detectors.ThermalCritC))
	}

	return detectors
}
