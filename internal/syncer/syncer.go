package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joshp123/xiqsync/internal/auth"
	"github.com/joshp123/xiqsync/internal/xiq"
)

const (
	StageAuth         = "auth"
	StageFetchDevices = "fetch_devices"
	StageFetchSSIDs   = "fetch_ssids"
	StageStore        = "store"
	StageLocations    = "locations"
)

// StageError names the pipeline stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fetcher reads inventory from the API.
type Fetcher interface {
	FetchAccessPoints(ctx context.Context, pageSize int) ([]xiq.Device, error)
	FetchSSIDs(ctx context.Context, ids []int64) (map[int64][]xiq.Wlan, error)
	FetchLocationsTree(ctx context.Context) (json.RawMessage, error)
}

// FetcherFactory builds a Fetcher bound to a bearer token.
type FetcherFactory func(token string) (Fetcher, error)

type Credentials interface {
	Credential(ctx context.Context, force bool) (auth.Credential, error)
}

// Writer persists fetched inventory.
type Writer interface {
	Persist(ctx context.Context, devices []xiq.Device, ssids map[int64][]xiq.Wlan) (int, error)
	SaveLocations(ctx context.Context, raw []byte) error
}

// Notifier receives the outcome of every run.
type Notifier interface {
	Publish(ctx context.Context, result Result) error
}

type Options struct {
	PageSize   int
	ForceLogin bool
	Locations  bool
}

// Result summarizes one run.
type Result struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	AccessPoints int
	SSIDDevices  int
	Stored       int
	Relogin      bool
	Err          error
}

// Syncer runs the credential, fetch and store pipeline.
type Syncer struct {
	opts       Options
	creds      Credentials
	newFetcher FetcherFactory
	writer     Writer
	notifier   Notifier
	now        func() time.Time
}

func New(opts Options, creds Credentials, newFetcher FetcherFactory, writer Writer) *Syncer {
	return &Syncer{
		opts:       opts,
		creds:      creds,
		newFetcher: newFetcher,
		writer:     writer,
		now:        time.Now,
	}
}

// WithNotifier attaches a Notifier. Publish failures are logged only.
func (s *Syncer) WithNotifier(n Notifier) *Syncer {
	s.notifier = n
	return s
}

// Run executes one full sync. The returned Result is populated even on error.
func (s *Syncer) Run(ctx context.Context) (Result, error) {
	result := Result{StartedAt: s.now()}
	err := s.run(ctx, &result)
	result.FinishedAt = s.now()
	result.Err = err

	recordRun(result)
	if s.notifier != nil {
		if perr := s.notifier.Publish(ctx, result); perr != nil {
			log.Printf("status publish failed: %v", perr)
		}
	}
	return result, err
}

func (s *Syncer) run(ctx context.Context, result *Result) error {
	cred, err := s.creds.Credential(ctx, s.opts.ForceLogin)
	if err != nil {
		return &StageError{Stage: StageAuth, Err: err}
	}

	fetcher, aps, ssids, err := s.fetch(ctx, cred.Token)
	if err != nil && errors.Is(err, xiq.ErrUnauthorized) && !cred.Fresh {
		log.Printf("stored credential rejected, logging in again")
		cred, err = s.creds.Credential(ctx, true)
		if err != nil {
			return &StageError{Stage: StageAuth, Err: err}
		}
		result.Relogin = true
		fetcher, aps, ssids, err = s.fetch(ctx, cred.Token)
	}
	if err != nil {
		return err
	}
	result.AccessPoints = len(aps)
	result.SSIDDevices = len(ssids)

	stored, err := s.writer.Persist(ctx, aps, ssids)
	result.Stored = stored
	if err != nil {
		return &StageError{Stage: StageStore, Err: err}
	}

	if s.opts.Locations {
		raw, err := fetcher.FetchLocationsTree(ctx)
		if err != nil {
			return &StageError{Stage: StageLocations, Err: err}
		}
		if err := s.writer.SaveLocations(ctx, raw); err != nil {
			return &StageError{Stage: StageLocations, Err: err}
		}
		log.Printf("location tree stored")
	}
	return nil
}

func (s *Syncer) fetch(ctx context.Context, token string) (Fetcher, []xiq.Device, map[int64][]xiq.Wlan, error) {
	fetcher, err := s.newFetcher(token)
	if err != nil {
		return nil, nil, nil, &StageError{Stage: StageAuth, Err: err}
	}

	aps, err := fetcher.FetchAccessPoints(ctx, s.opts.PageSize)
	if err != nil {
		return nil, nil, nil, &StageError{Stage: StageFetchDevices, Err: err}
	}
	log.Printf("fetched %d access points", len(aps))

	ssids, err := fetcher.FetchSSIDs(ctx, xiq.DeviceIDs(aps))
	if err != nil {
		return nil, nil, nil, &StageError{Stage: StageFetchSSIDs, Err: err}
	}
	log.Printf("fetched SSIDs for %d devices", len(ssids))
	return fetcher, aps, ssids, nil
}
