// Package dispatch replicates accepted file changes to the sync server in the
// background, so that the goroutine delivering filesystem notifications never
// waits on the network.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/buger/goterm"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/filesync/pkg/errors"
	"github.com/sidkik/filesync/pkg/fswatch"
	"github.com/sidkik/filesync/pkg/proto/filesync"
	syncClient "github.com/sidkik/filesync/pkg/sync/client"
)

// DefaultWorkers is the default maximum number of changes replicated at once.
const DefaultWorkers = 8

// Config configures a Dispatcher.
type Config struct {
	// Workers bounds the number of in-flight remote calls.
	Workers int

	// CallTimeout bounds each remote call. Zero means no deadline.
	CallTimeout time.Duration

	// Output receives one line per finished change. Defaults to stdout.
	Output io.Writer
}

// Dispatcher runs a remote operation for every submitted change.
//
// Changes that touch the same file name are applied one at a time, in the
// order they were submitted, so the server never sees an older version of a
// file after a newer one. Changes to different files run concurrently, up to
// the configured number of workers.
type Dispatcher struct {
	client      syncClient.Client
	workers     int
	callTimeout time.Duration
	output      io.Writer
	outputLock  sync.Mutex

	lock    sync.Mutex
	pending []job
	busy    map[string]struct{}
	running int

	inFlight sync.WaitGroup
}

type job struct {
	id     string
	change fswatch.Change
}

// New returns a Dispatcher that replicates changes through `client`.
func New(client syncClient.Client, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	return &Dispatcher{
		client:      client,
		workers:     cfg.Workers,
		callTimeout: cfg.CallTimeout,
		output:      cfg.Output,
		busy:        map[string]struct{}{},
	}
}

// Run submits every change received on `changes` until the channel is
// closed or `ctx` is done, and then waits for the submitted changes to finish.
// Changes that are still buffered in the channel when `ctx` is done are
// dropped.
func (d *Dispatcher) Run(ctx context.Context, changes <-chan fswatch.Change) {
	defer d.Wait()
	for {
		select {
		case c, ok := <-changes:
			if !ok {
				return
			}
			d.Submit(c)
		case <-ctx.Done():
			return
		}
	}
}

// Submit schedules `c` for replication and returns immediately.
func (d *Dispatcher) Submit(c fswatch.Change) {
	d.inFlight.Add(1)

	d.lock.Lock()
	defer d.lock.Unlock()
	d.pending = append(d.pending, job{id: uuid.New().String(), change: c})
	d.scheduleLocked()
}

// Wait blocks until every submitted change has finished.
func (d *Dispatcher) Wait() {
	d.inFlight.Wait()
}

// scheduleLocked starts every pending job that can run. A job can run if
// there's a free worker, no running job touches any of its names, and no
// earlier pending job touches any of its names.
func (d *Dispatcher) scheduleLocked() {
	claimed := map[string]struct{}{}
	var stillPending []job
	for _, j := range d.pending {
		names := j.change.Names()
		if d.running >= d.workers || d.anyBusy(names, claimed) {
			for _, name := range names {
				claimed[name] = struct{}{}
			}
			stillPending = append(stillPending, j)
			continue
		}

		for _, name := range names {
			d.busy[name] = struct{}{}
		}
		d.running++
		go d.run(j)
	}
	d.pending = stillPending
}

func (d *Dispatcher) anyBusy(names []string, claimed map[string]struct{}) bool {
	for _, name := range names {
		if _, ok := d.busy[name]; ok {
			return true
		}
		if _, ok := claimed[name]; ok {
			return true
		}
	}
	return false
}

func (d *Dispatcher) finish(j job) {
	d.lock.Lock()
	for _, name := range j.change.Names() {
		delete(d.busy, name)
	}
	d.running--
	d.scheduleLocked()
	d.lock.Unlock()

	d.inFlight.Done()
}

func (d *Dispatcher) run(j job) {
	defer d.finish(j)

	logger := log.WithFields(log.Fields{
		"id":     j.id,
		"change": j.change.String(),
	})

	// A failure to replicate one change must not take down the watcher.
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic while syncing change: %v", r)
		}
	}()

	tok, err := d.perform(j.change)
	if err != nil {
		logger.WithError(err).Error("Failed to sync change")
		return
	}
	if !tok.OK() {
		logger.WithField("token", string(tok)).Warn("Server failed to apply change")
	}
	d.report(j.change, tok)
}

func (d *Dispatcher) perform(c fswatch.Change) (filesync.Token, error) {
	ctx := context.Background()
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	switch c.Kind {
	case fswatch.Created, fswatch.Modified:
		tok, err := d.client.Upload(ctx, c.Name)
		return tok, errors.WithContext(err, "upload")
	case fswatch.Deleted:
		tok, err := d.client.Delete(ctx, c.Name)
		return tok, errors.WithContext(err, "delete")
	case fswatch.Moved:
		tok, err := d.client.Rename(ctx, c.Name, c.NewName)
		return tok, errors.WithContext(err, "rename")
	}
	return filesync.Failed, errors.New("unknown change kind %q", c.Kind)
}

func (d *Dispatcher) report(c fswatch.Change, tok filesync.Token) {
	color := goterm.GREEN
	if !tok.OK() {
		color = goterm.RED
	}
	d.outputLock.Lock()
	defer d.outputLock.Unlock()
	fmt.Fprintf(d.output, "=> %s: %s\n", c, goterm.Color(tok.String(), color))
}
