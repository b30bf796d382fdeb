package cmd

import (
	"time"

	adaptergit "github.com/arbor-sh/arbor/internal/adapters/git"
	adapterprobe "github.com/arbor-sh/arbor/internal/adapters/probe"
	adapterstorage "github.com/arbor-sh/arbor/internal/adapters/storage"
	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/internal/services"
)

// visibilityCacheTTL bounds how long picker-facing reads may serve a
// stale hidden-branch snapshot.
const visibilityCacheTTL = 5 * time.Second

// processCacheTTL bounds lsof lookup reuse during a conflict scan.
const processCacheTTL = 10 * time.Second

// Container holds all dependencies for the application
type Container struct {
	Allocator  *services.AllocatorService
	Events     *services.EventService
	Health     *services.HealthService
	Lifecycle  *services.LifecycleService
	Trash      *services.TrashService
	Visibility *services.VisibilityService

	Settings *config.Settings
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(settings *config.Settings) (*Container, error) {
	probeTimeout := time.Duration(settings.ProbeTimeoutMsOrDefault()) * time.Millisecond

	// Adapters
	allocationStore := adapterstorage.NewAllocationStore(config.GetPortsPath())
	visibilityStore := adapterstorage.NewVisibilityStore(config.GetVisibilityPath())
	eventLog := adapterstorage.NewEventLog(config.GetEventsPath())
	mover := adapterstorage.NewRenameMover()
	trashStore := adapterstorage.NewTrashStore(config.GetTrashPath(), mover)
	gitWorktrees := adaptergit.NewCLIWorktrees()
	prober := adapterprobe.NewTCPProber(probeTimeout)
	inspector := adapterprobe.NewLsofInspector(processCacheTTL, probeTimeout)

	// Services
	allocator := services.NewAllocatorService(allocationStore, prober, inspector, gitWorktrees)
	events := services.NewEventService(eventLog, settings.EventBufferSizeOrDefault())
	trash := services.NewTrashService(trashStore, gitWorktrees, mover)
	visibility := services.NewVisibilityService(visibilityStore, visibilityCacheTTL)
	lifecycle := services.NewLifecycleService(allocator, trash, events, gitWorktrees)
	health := services.NewHealthService(allocator, events, trash)

	return &Container{
		Allocator:  allocator,
		Events:     events,
		Health:     health,
		Lifecycle:  lifecycle,
		Trash:      trash,
		Visibility: visibility,
		Settings:   settings,
	}, nil
}
