package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"evalo/internal/grading"
	"evalo/internal/logging"
	"evalo/internal/services"
)

// MissingFilesMessage is shown when submit is attempted without both documents.
const MissingFilesMessage = "Please upload both the student answer and answer key PDFs"

// Phase enumerates the workflow states.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Grader performs the remote grading call.
type Grader interface {
	Submit(ctx context.Context, student, answerKey grading.Document) (grading.Result, error)
}

// Snapshot is an immutable copy of the workflow state.
type Snapshot struct {
	Phase         Phase
	Progress      int
	Status        string
	Error         string
	ErrorKind     services.Kind
	Result        *grading.Result
	StudentAnswer string
	AnswerKey     string
	SubmissionID  string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithTimeline replaces the simulated progress schedule.
func WithTimeline(t Timeline) Option {
	return func(w *Workflow) { w.timeline = t }
}

// WithScheduler replaces the timer source used for the progress schedule.
func WithScheduler(s Scheduler) Option {
	return func(w *Workflow) { w.scheduler = s }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

// WithClock overrides the time source used for StartedAt/FinishedAt.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// Workflow is the upload-and-grade state machine.
type Workflow struct {
	grader    Grader
	timeline  Timeline
	scheduler Scheduler
	logger    *slog.Logger
	now       func() time.Time
	sampler   *logging.ProgressSampler

	mu         sync.Mutex
	notifyMu   sync.Mutex
	phase      Phase
	progress   int
	status     string
	errMsg     string
	errKind    services.Kind
	result     *grading.Result
	student    grading.Document
	answerKey  grading.Document
	submission string
	startedAt  time.Time
	finishedAt time.Time

	generation uint64
	timer      Timer
	cancel     context.CancelFunc

	subscribers map[int]func(Snapshot)
	nextSub     int
}

// New constructs an idle workflow.
func New(grader Grader, opts ...Option) (*Workflow, error) {
	if grader == nil {
		return nil, errors.New("upload workflow requires a grader")
	}
	w := &Workflow{
		grader:      grader,
		timeline:    DefaultTimeline(),
		scheduler:   realScheduler{},
		now:         time.Now,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.timeline.Validate(); err != nil {
		return nil, fmt.Errorf("progress timeline: %w", err)
	}
	w.logger = logging.NewComponentLogger(w.logger, "upload")
	w.sampler = logging.NewProgressSampler(10)
	return w, nil
}

// SelectStudentAnswer sets the student answer document.
func (w *Workflow) SelectStudentAnswer(doc grading.Document) error {
	return w.selectDocument(func() { w.student = doc })
}

// SelectAnswerKey sets the answer key document.
func (w *Workflow) SelectAnswerKey(doc grading.Document) error {
	return w.selectDocument(func() { w.answerKey = doc })
}

func (w *Workflow) selectDocument(apply func()) error {
	w.mu.Lock()
	if w.phase == PhaseUploading {
		w.mu.Unlock()
		return services.Wrap(services.ErrBusy, "upload", "select", "grading in progress", nil)
	}
	apply()
	w.publishLocked()
	return nil
}

// Submit validates the selection, starts the grading request and the
// simulated progress schedule, and returns a channel that closes once the
// request has resolved. A retry from the failed state is allowed; a
// succeeded workflow must be Reset first.
func (w *Workflow) Submit(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	switch w.phase {
	case PhaseUploading:
		w.mu.Unlock()
		return nil, services.Wrap(services.ErrBusy, "upload", "submit", "processing...", nil)
	case PhaseSucceeded:
		w.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "upload", "submit", "reset before grading another exam", nil)
	}
	if w.student == nil || w.answerKey == nil {
		w.errMsg = MissingFilesMessage
		w.errKind = services.KindValidation
		w.publishLocked()
		return nil, services.Wrap(services.ErrValidation, "upload", "submit", MissingFilesMessage, nil)
	}

	w.generation++
	gen := w.generation
	first := w.timeline[0]
	w.phase = PhaseUploading
	w.progress = first.Percent
	w.status = first.Label
	w.errMsg = ""
	w.errKind = services.KindNone
	w.result = nil
	w.submission = uuid.NewString()
	w.startedAt = w.now()
	w.finishedAt = time.Time{}

	reqCtx := services.WithSubmissionID(ctx, w.submission)
	reqCtx, cancel := context.WithCancel(reqCtx)
	w.cancel = cancel
	student, answerKey := w.student, w.answerKey
	w.sampler.Reset()
	w.scheduleStageLocked(gen, 1)
	logger := logging.WithContext(reqCtx, w.logger)
	logger.Info("submission started",
		logging.String("student_pdf", student.Name()),
		logging.String("answer_key_pdf", answerKey.Name()),
	)
	w.publishLocked()

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err := w.grader.Submit(reqCtx, student, answerKey)
		w.finish(gen, result, err, logger)
	}()
	return done, nil
}

// Reset returns the workflow to idle, clearing selections, result, and error.
// An in-flight request is cancelled and pending progress ticks are stopped;
// anything that resolves afterwards is ignored.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.generation++
	w.stopLocked()
	w.phase = PhaseIdle
	w.progress = 0
	w.status = ""
	w.errMsg = ""
	w.errKind = services.KindNone
	w.result = nil
	w.student = nil
	w.answerKey = nil
	w.submission = ""
	w.startedAt = time.Time{}
	w.finishedAt = time.Time{}
	w.publishLocked()
}

// Snapshot returns the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Subscribe registers fn to receive every state write in order, starting with
// the current state. fn runs synchronously on the goroutine that wrote the
// state and must not call back into the Workflow. The returned func
// unsubscribes.
func (w *Workflow) Subscribe(fn func(Snapshot)) func() {
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subscribers[id] = fn
	snap := w.snapshotLocked()
	w.notifyMu.Lock()
	w.mu.Unlock()
	fn(snap)
	w.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subscribers, id)
			w.mu.Unlock()
		})
	}
}

func (w *Workflow) scheduleStageLocked(gen uint64, idx int) {
	if idx >= len(w.timeline) {
		w.timer = nil
		return
	}
	stage := w.timeline[idx]
	w.timer = w.scheduler.AfterFunc(stage.Delay, func() {
		w.tick(gen, idx)
	})
}

func (w *Workflow) tick(gen uint64, idx int) {
	w.mu.Lock()
	if gen != w.generation || w.phase != PhaseUploading {
		w.mu.Unlock()
		return
	}
	stage := w.timeline[idx]
	w.progress = stage.Percent
	w.status = stage.Label
	if w.sampler.ShouldLog(stage.Percent, stage.Label) {
		w.logger.Debug("progress stage",
			logging.String(logging.FieldSubmissionID, w.submission),
			logging.String(logging.FieldStage, stage.Label),
			logging.Int("percent", stage.Percent),
		)
	}
	w.scheduleStageLocked(gen, idx+1)
	w.publishLocked()
}

func (w *Workflow) finish(gen uint64, result grading.Result, err error, logger *slog.Logger) {
	w.mu.Lock()
	if gen != w.generation || w.phase != PhaseUploading {
		w.mu.Unlock()
		logger.Debug("discarding superseded grading response")
		return
	}
	w.stopLocked()
	w.finishedAt = w.now()
	elapsed := w.finishedAt.Sub(w.startedAt)

	if err != nil {
		w.phase = PhaseFailed
		w.status = FailedLabel
		w.errMsg = "Failed to process PDFs: " + failureDetail(err)
		w.errKind = services.Classify(err)
		logging.WarnWithContext(logger, "grading failed", "grading_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(w.errKind)),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, "check the grading service URL and retry"),
		)
	} else {
		w.phase = PhaseSucceeded
		w.progress = 100
		w.status = CompleteLabel
		w.result = &result
		logger.Info("grading completed",
			logging.Int("questions", len(result.Questions)),
			logging.Duration("elapsed", elapsed),
		)
	}
	w.publishLocked()
}

func (w *Workflow) stopLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Workflow) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:        w.phase,
		Progress:     w.progress,
		Status:       w.status,
		Error:        w.errMsg,
		ErrorKind:    w.errKind,
		SubmissionID: w.submission,
		StartedAt:    w.startedAt,
		FinishedAt:   w.finishedAt,
	}
	if w.result != nil {
		copied := *w.result
		copied.Questions = append([]grading.Question(nil), w.result.Questions...)
		snap.Result = &copied
	}
	if w.student != nil {
		snap.StudentAnswer = w.student.Name()
	}
	if w.answerKey != nil {
		snap.AnswerKey = w.answerKey.Name()
	}
	return snap
}

// publishLocked releases w.mu after handing the current state to subscribers.
// notifyMu is taken before w.mu is released so observers see writes in order.
func (w *Workflow) publishLocked() {
	snap := w.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(w.subscribers))
	for i := 0; i < w.nextSub; i++ {
		if fn, ok := w.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	w.notifyMu.Lock()
	w.mu.Unlock()
	defer w.notifyMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func failureDetail(err error) string {
	var statusErr *grading.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Server responded with status: %d", statusErr.StatusCode)
	}
	return err.Error()
}
