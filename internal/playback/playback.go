// Package playback supervises ani-cli runs. ani-cli owns the terminal and
// the watch-history ledger for the duration of a run and reports nothing
// back, so every flow here is the same sandwich: snapshot state, hand the
// terminal over, wait, and reconstruct what happened from the ledger.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/natsukawa/anitrack/internal/episode"
	"github.com/natsukawa/anitrack/internal/history"
	"github.com/natsukawa/anitrack/internal/progress"
	"github.com/natsukawa/anitrack/internal/utils"
)

// ErrNoForeground reports that the terminal's current foreground process
// group could not be read, so handing the terminal to a child would be a
// blind guess.
var ErrNoForeground = errors.New("failed to read terminal process group")

// ExitStatus is the terminal state of one supervised child process.
type ExitStatus struct {
	Code   int    // exit code; -1 when the child was signaled
	Signal string // signal name when the child was signaled, else empty
}

// Success reports a clean zero exit.
func (s ExitStatus) Success() bool {
	return s.Signal == "" && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return "signal: " + s.Signal
	}
	return fmt.Sprintf("exit status: %d", s.Code)
}

// Outcome describes one finished playback run.
type Outcome struct {
	Success       bool
	FinalEpisode  string // episode to persist; empty when unknown
	FailureDetail string // cause hint for a failed run, empty when unknown
}

// PlanKind discriminates replay strategies.
type PlanKind int

const (
	// PlanContinue seeds a throwaway ledger and lets ani-cli continue from it.
	PlanContinue PlanKind = iota
	// PlanEpisode plays one explicit episode, pinned to a search rank.
	PlanEpisode
)

// Plan is the navigation decision for a replay run.
type Plan struct {
	Kind    PlanKind
	Seed    string // PlanContinue: episode written to the throwaway ledger
	Episode string // PlanEpisode: label handed to ani-cli via -e
	Rank    int    // PlanEpisode: 1-based search rank, 0 when unresolved
}

// Invocation is one ani-cli launch: arguments, extra environment, and
// whether the run needs terminal job control.
type Invocation struct {
	Args        []string
	ExtraEnv    []string
	Interactive bool
}

// Launcher executes one ani-cli invocation to completion.
// This abstraction allows scripting playback runs in tests.
type Launcher func(inv Invocation) (ExitStatus, error)

// CatalogService resolves episode catalogs and search ranks for tracked
// shows. *allanime.Client implements it.
type CatalogService interface {
	Catalog(ctx context.Context, showID string, totalHint int) ([]string, []string)
	ResolveRank(ctx context.Context, showID, title, preferredMode string) (int, []string)
}

// ProgressStore is the single write path for watch progress.
type ProgressStore interface {
	Upsert(showID, title, episode string) error
}

// Controller runs ani-cli on behalf of one tracked action. Zero values fall
// back to the real binary and the real ledger.
type Controller struct {
	Bin      string         // ani-cli binary; "ani-cli" when empty
	HistPath string         // global ledger; the ani-cli default when empty
	Mode     string         // preferred translation mode for rank resolution
	Catalog  CatalogService // catalog/rank lookups for replay, previous, select
	Detector history.Detector
	Launch   Launcher // if nil, launches the real binary
}

func (c *Controller) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return "ani-cli"
}

func (c *Controller) histPath() string {
	if c.HistPath != "" {
		return c.HistPath
	}
	return history.DefaultPath()
}

// launch dispatches one invocation to the injected launcher or the real
// binary with inherited standard streams.
func (c *Controller) launch(inv Invocation) (ExitStatus, error) {
	log := utils.Log.WithField("run", uuid.NewString())
	log.Debugf("launching %s %s (interactive=%t)", c.bin(), strings.Join(inv.Args, " "), inv.Interactive)

	var status ExitStatus
	var err error
	if c.Launch != nil {
		status, err = c.Launch(inv)
	} else {
		cmd := exec.Command(c.bin(), inv.Args...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if len(inv.ExtraEnv) > 0 {
			cmd.Env = append(os.Environ(), inv.ExtraEnv...)
		}
		if inv.Interactive {
			status, err = runInteractive(cmd)
		} else {
			status, err = runPlain(cmd)
		}
	}
	if err != nil {
		log.Debugf("launch failed: %v", err)
		return status, err
	}
	log.Debugf("finished: %s", status)
	return status, nil
}

// runPlain is the fire-and-forget shape: inherited stdio, synchronous wait,
// no terminal handoff.
func runPlain(cmd *exec.Cmd) (ExitStatus, error) {
	if err := cmd.Start(); err != nil {
		return ExitStatus{}, fmt.Errorf("failed to spawn %s: %w", cmd.Path, err)
	}
	return wait(cmd)
}

// wait turns the child's end state into an ExitStatus, keeping abnormal
// exits distinct from wait failures.
func wait(cmd *exec.Cmd) (ExitStatus, error) {
	err := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return statusOf(cmd.ProcessState), nil
	case errors.As(err, &exitErr):
		return statusOf(exitErr.ProcessState), nil
	default:
		return ExitStatus{}, fmt.Errorf("failed waiting on %s: %w", cmd.Path, err)
	}
}

// RunSearch supervises a plain `ani-cli` session end to end and records
// whatever the ledger says got watched. The returned message is ready for
// display; showID is the id of the recorded entry, empty when none. Launch
// failures become part of the message: the session is over either way and
// progress is simply left unchanged.
func (c *Controller) RunSearch(store ProgressStore) (message, showID string, err error) {
	path := c.histPath()
	before := history.ReadSnapshot(path)
	warnings := before.Warnings
	window := history.LogWindow{Start: time.Now()}

	status, launchErr := c.launch(Invocation{Interactive: true})
	window.End = time.Now()
	if launchErr != nil {
		msg := fmt.Sprintf("ani-cli failed to start: %v. Progress unchanged.", launchErr)
		return appendWarnings(msg, warnings), "", nil
	}

	after := history.ReadSnapshot(path)
	warnings = append(warnings, after.Warnings...)

	entry, detectWarnings := c.Detector.Detect(before, after, window)
	warnings = append(warnings, detectWarnings...)

	switch {
	case entry != nil:
		if err := store.Upsert(entry.ShowID, entry.Title, entry.Episode); err != nil {
			return "", "", err
		}
		showID = entry.ShowID
		message = fmt.Sprintf("Recorded last seen: %s | episode %s", entry.Title, entry.Episode)
	case history.Touched(before.Sig, after.Sig) && !history.SameEntries(before.Entries, after.Entries):
		message = "History changed but no parseable watch entry was detected from this run."
	default:
		message = "No new history entry detected from this run."
	}
	if !status.Success() {
		message += "\nani-cli exited with status: " + status.String()
	}
	return appendWarnings(message, warnings), showID, nil
}

// RunContinue plays whatever comes after seedEpisode by pointing `ani-cli -c`
// at a throwaway one-line ledger, keeping the real one untouched. On success
// the seeded file is read back for the episode ani-cli landed on.
func (c *Controller) RunContinue(show progress.Show, seedEpisode string) (Outcome, error) {
	dir, err := os.MkdirTemp("", "anitrack-hist-")
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create temp history dir: %w", err)
	}
	defer os.RemoveAll(dir)

	seedPath := filepath.Join(dir, "ani-hsts")
	line := fmt.Sprintf("%s\t%s\t%s\n", seedEpisode, show.ShowID, show.Title)
	if err := os.WriteFile(seedPath, []byte(line), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("failed writing temp ani-cli history at %s: %w", seedPath, err)
	}

	status, err := c.launch(Invocation{
		Args:     []string{"-c"},
		ExtraEnv: []string{"ANI_CLI_HIST_DIR=" + dir},
	})
	if err != nil {
		return Outcome{}, err
	}
	if !status.Success() {
		return Outcome{FailureDetail: status.String()}, nil
	}

	snap := history.ReadSnapshot(seedPath)
	logWarnings(snap.Warnings)
	out := Outcome{Success: true}
	if e, ok := snap.Latest[show.ShowID]; ok {
		out.FinalEpisode = e.Episode
	}
	return out, nil
}

// RunEpisode plays one explicit episode: `ani-cli [-S rank] title -e episode`.
func (c *Controller) RunEpisode(title string, rank int, episodeLabel string) (ExitStatus, error) {
	args := make([]string, 0, 5)
	if rank > 0 {
		args = append(args, "-S", strconv.Itoa(rank))
	}
	args = append(args, title, "-e", episodeLabel)
	return c.launch(Invocation{Args: args})
}

// runTitle opens ani-cli's episode picker for one show: `ani-cli [-S rank] title`.
func (c *Controller) runTitle(title string, rank int) (ExitStatus, error) {
	args := make([]string, 0, 3)
	if rank > 0 {
		args = append(args, "-S", strconv.Itoa(rank))
	}
	args = append(args, title)
	return c.launch(Invocation{Args: args})
}

// RunEpisodeTracked plays one explicit episode while bracketing the global
// ledger by show id, so the episode ani-cli actually recorded wins over the
// requested one.
func (c *Controller) RunEpisodeTracked(show progress.Show, episodeLabel string, rank int) (Outcome, error) {
	path := c.histPath()
	before := history.ReadSnapshot(path)
	logWarnings(before.Warnings)

	status, err := c.RunEpisode(episode.SanitizeTitle(show.Title), rank, episodeLabel)
	if err != nil {
		return Outcome{}, err
	}
	if !status.Success() {
		return Outcome{FailureDetail: status.String()}, nil
	}

	after := history.ReadSnapshot(path)
	logWarnings(after.Warnings)
	out := Outcome{Success: true, FinalEpisode: episodeLabel}
	if e, ok := after.Latest[show.ShowID]; ok {
		out.FinalEpisode = e.Episode
	} else if e, ok := before.Latest[show.ShowID]; ok {
		out.FinalEpisode = e.Episode
	}
	return out, nil
}

// RunSelect opens ani-cli's episode picker pinned to the tracked show's
// search rank, bracketing the global ledger for whatever gets watched.
// Rank resolution failure is a hard error: an unpinned search could
// attribute progress to the wrong show.
func (c *Controller) RunSelect(ctx context.Context, show progress.Show) (Outcome, error) {
	rank, warnings := c.Catalog.ResolveRank(ctx, show.ShowID, show.Title, c.Mode)
	logWarnings(warnings)
	if rank == 0 {
		return Outcome{}, rankError("failed to resolve current show for episode selection", warnings)
	}

	path := c.histPath()
	before := history.ReadSnapshot(path)
	logWarnings(before.Warnings)

	status, err := c.runTitle(episode.SanitizeTitle(show.Title), rank)
	if err != nil {
		return Outcome{}, err
	}
	if !status.Success() {
		return Outcome{FailureDetail: status.String()}, nil
	}

	after := history.ReadSnapshot(path)
	logWarnings(after.Warnings)
	out := Outcome{Success: true}
	if e, ok := after.Latest[show.ShowID]; ok {
		out.FinalEpisode = e.Episode
	} else if e, ok := before.Latest[show.ShowID]; ok {
		out.FinalEpisode = e.Episode
	}
	return out, nil
}

// RunReplay rewatches the stored episode. A nil catalog is fetched lazily,
// and only when the numeric fallback alone cannot seed a continue run.
func (c *Controller) RunReplay(ctx context.Context, show progress.Show, catalog []string) (Outcome, error) {
	if catalog == nil {
		if _, ok := episode.ReplaySeed(show.LastEpisode, nil); !ok {
			labels, warnings := c.Catalog.Catalog(ctx, show.ShowID, episode.TotalHint(show.Title))
			logWarnings(warnings)
			catalog = labels
		}
	}

	plan, err := c.replayPlan(ctx, show, catalog)
	if err != nil {
		return Outcome{}, err
	}
	if plan.Kind == PlanContinue {
		return c.RunContinue(show, plan.Seed)
	}
	return c.RunEpisodeTracked(show, plan.Episode, plan.Rank)
}

// replayPlan picks between re-seeding a continue run and an explicit-episode
// run. First-entry labels ("0") have no seed; replaying them goes through an
// explicit episode pinned to a resolved rank, since a bare title search in
// ani-cli could open the wrong show.
func (c *Controller) replayPlan(ctx context.Context, show progress.Show, catalog []string) (Plan, error) {
	if seed, ok := episode.ReplaySeed(show.LastEpisode, catalog); ok {
		return Plan{Kind: PlanContinue, Seed: seed}, nil
	}
	rank, warnings := c.Catalog.ResolveRank(ctx, show.ShowID, show.Title, c.Mode)
	logWarnings(warnings)
	if rank == 0 {
		return Plan{}, rankError("failed to resolve current show for replay", warnings)
	}
	return Plan{Kind: PlanEpisode, Episode: show.LastEpisode, Rank: rank}, nil
}

// RunPrevious steps back one episode. The catalog is fetched when absent:
// without one the numeric fallback cannot step over decimal specials.
// Returns episode.ErrNoPrevious when the stored episode has nothing before
// it.
func (c *Controller) RunPrevious(ctx context.Context, show progress.Show, catalog []string) (Outcome, error) {
	if catalog == nil {
		labels, warnings := c.Catalog.Catalog(ctx, show.ShowID, episode.TotalHint(show.Title))
		logWarnings(warnings)
		catalog = labels
	}

	target, ok := episode.PreviousTarget(show.LastEpisode, catalog)
	if !ok {
		return Outcome{}, episode.ErrNoPrevious
	}
	if seed, ok := episode.PreviousSeed(show.LastEpisode, catalog); ok {
		return c.RunContinue(show, seed)
	}

	rank, warnings := c.Catalog.ResolveRank(ctx, show.ShowID, show.Title, c.Mode)
	logWarnings(warnings)
	if rank == 0 {
		return Outcome{}, rankError("failed to resolve current show for previous action", warnings)
	}
	return c.RunEpisodeTracked(show, target, rank)
}

// FailureMessage renders a failed outcome the way every caller reports it.
func FailureMessage(out Outcome) string {
	if out.FailureDetail != "" {
		return fmt.Sprintf("Playback failed/interrupted: %s. Progress not updated.", out.FailureDetail)
	}
	return "Playback failed/interrupted. Progress not updated."
}

// appendWarnings folds recovered problems into a user-facing message, one
// "Warning:" line each.
func appendWarnings(message string, warnings []string) string {
	for _, w := range warnings {
		message += "\nWarning: " + w
	}
	return message
}

// rankError carries the resolution warning trail inside the error text, so a
// failed rank lookup explains itself.
func rankError(msg string, warnings []string) error {
	return errors.New(appendWarnings(msg, warnings))
}

// logWarnings surfaces recovered problems on the diagnostic log when there
// is no user-facing message to fold them into.
func logWarnings(warnings []string) {
	for _, w := range warnings {
		utils.Log.Warn(w)
	}
}
