package app

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quizwiz-service/internal/domain"
)

// Error keys carried in views for the UI to localise.
const (
	ErrKeyInvalidGameID       = "invalidGameId"
	ErrKeyLoginRequired       = "loginRequiredToPlay"
	ErrKeyGameFull            = "gameIsFull"
	ErrKeyJoiningGame         = "errorJoiningGame"
	ErrKeyGeneratingQuestions = "errorGeneratingQuestions"
	ErrKeyGameNotFound        = "gameNotFoundOrClosed"
)

// View is what one client shows at a point in time.
type View struct {
	GameID        string              `json:"gameId"`
	Role          domain.Role         `json:"role,omitempty"`
	Stage         domain.Stage        `json:"stage"`
	Session       *domain.GameSession `json:"session,omitempty"`
	Countdown     int                 `json:"countdown"`
	TimeLeft      int                 `json:"timeLeft"`
	TimerActive   bool                `json:"timerActive"`
	RevealAnswers bool                `json:"revealAnswers"`
	Error         string              `json:"error,omitempty"`
	Summary       *Summary            `json:"summary,omitempty"`
}

type commandKind int

const (
	cmdAnswer commandKind = iota
	cmdReset
	cmdLeave
)

type command struct {
	kind  commandKind
	index *int
}

// Controller runs one client's side of a score-attack match. All match state
// is owned by the Run goroutine; snapshots, timers, user commands and results
// of asynchronous work are serialised through its select loop. Writes to the
// shared session are fired asynchronously and their failures only logged. A
// failed write releases the local guard that issued it so the write is issued
// again from the next snapshot or timer.
type Controller struct {
	gameID   string
	user     domain.User
	spectate bool

	sessions  *SessionClient
	points    PointsRepository
	questions QuestionGenerator
	settings  MatchSettings
	clock     clockwork.Clock
	logger    zerolog.Logger

	commands  chan command
	results   chan func()
	views     chan View
	stopped   chan struct{}
	spawn     func(func())
	wg        sync.WaitGroup
	writeBase context.Context

	// Owned by the Run goroutine.
	role         domain.Role
	session      *domain.GameSession
	stage        domain.Stage
	errKey       string
	fetching     bool
	settled      bool
	summary      *Summary
	generation   int
	awaitReset   bool
	countdown    int
	timeLeft     int
	timerActive  bool
	answeredIdx  int
	roundIdx     int
	revealIdx    int
	countdownTkr clockwork.Ticker
	roundTkr     clockwork.Ticker
	revealTmr    clockwork.Timer
	unsubscribe  func()
	snapshots    <-chan *domain.GameSession
}

// Views delivers the latest view after every change. Intermediate views may be
// skipped by a slow reader. The channel is closed when Run returns.
func (c *Controller) Views() <-chan View {
	return c.views
}

// SubmitAnswer answers the current question; nil means no answer.
func (c *Controller) SubmitAnswer(index *int) {
	c.send(command{kind: cmdAnswer, index: index})
}

// Reset asks for a rematch. Only player1 may reset, and only after the match ended.
func (c *Controller) Reset() {
	c.send(command{kind: cmdReset})
}

// Leave ends Run as if the client navigated away.
func (c *Controller) Leave() {
	c.send(command{kind: cmdLeave})
}

func (c *Controller) send(cmd command) {
	select {
	case c.commands <- cmd:
	case <-c.stopped:
	}
}

// Run joins the session and processes events until ctx is cancelled or Leave
// is called. Teardown stops timers, releases the subscription and, when the
// client leaves an active match as a player, applies the abandonment penalty.
// Pending writes are awaited before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.writeBase = context.WithoutCancel(ctx)
	defer c.teardown()

	c.join(ctx)
	c.publish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-c.snapshots:
			if !ok {
				c.snapshots = nil
			}
			c.onSnapshot(s)
		case <-tickerChan(c.countdownTkr):
			c.onCountdownTick()
		case <-tickerChan(c.roundTkr):
			c.onRoundTick()
		case <-timerChan(c.revealTmr):
			c.revealTmr = nil
			c.onReveal()
		case fn := <-c.results:
			fn()
		case cmd := <-c.commands:
			switch cmd.kind {
			case cmdLeave:
				return nil
			case cmdAnswer:
				c.submitAnswer(cmd.index)
			case cmdReset:
				c.reset()
			}
		}
		c.publish()
	}
}

func (c *Controller) join(ctx context.Context) {
	if c.gameID == "" {
		c.logger.Info().Err(domain.ErrInvalidGameID).Msg("join refused")
		c.fail(ErrKeyInvalidGameID)
		return
	}
	if c.user.ID == "" {
		c.fail(ErrKeyLoginRequired)
		return
	}

	session, role, err := c.sessions.GetOrCreate(ctx, c.gameID, c.user, c.spectate)
	if err != nil {
		c.logger.Error().Err(err).Msg("join failed")
		c.fail(ErrKeyJoiningGame)
		return
	}
	c.role = role
	if role == domain.RoleFull {
		c.logger.Info().Err(domain.ErrSessionFull).Msg("join refused")
		c.fail(ErrKeyGameFull)
		return
	}
	c.session = session
	c.logger = c.logger.With().Str("role", string(role)).Logger()

	snapshots, unsubscribe, err := c.sessions.Subscribe(ctx, c.gameID)
	if err != nil {
		c.logger.Error().Err(err).Msg("subscribe failed")
		c.fail(ErrKeyJoiningGame)
		return
	}
	c.snapshots, c.unsubscribe = snapshots, unsubscribe
	c.logger.Info().Msg("joined session")
}

func (c *Controller) fail(errKey string) {
	c.errKey = errKey
	c.stage = domain.StageGameOver
}

func (c *Controller) onSnapshot(s *domain.GameSession) {
	if s == nil {
		c.session = nil
		c.stopTimers()
		if c.role.IsPlayer() {
			c.errKey = ErrKeyGameNotFound
		}
		c.stage = domain.StageGameOver
		return
	}

	if c.awaitReset {
		if s.Status.IsTerminal() {
			c.session = s
			return
		}
		c.awaitReset = false
	}
	if c.stage == domain.StageGameOver && !s.Status.IsTerminal() {
		c.logger.Info().Str("status", string(s.Status)).Msg("session restarted")
		c.recycle()
	}
	c.session = s

	if next, ok := DeriveStage(c.stage, s); ok {
		c.enterStage(next)
	}
	if c.stage == domain.StageFetchingQuestions {
		c.fetchQuestions()
	}
	c.syncRound()
	c.maybeReveal()
	c.maybeSettle()
}

func (c *Controller) enterStage(next domain.Stage) {
	c.logger.Debug().Str("from", string(c.stage)).Str("to", string(next)).Msg("stage changed")
	c.stage = next
	switch next {
	case domain.StageWaitingForOpponent:
		c.errKey = ""
	case domain.StageFetchingQuestions:
		c.errKey = ""
	case domain.StagePreparingMatch:
		c.errKey = ""
		c.startCountdown()
	case domain.StageGameOver:
		c.stopTimers()
	}
}

// recycle drops the finished match's local state when the session starts over.
func (c *Controller) recycle() {
	c.generation++
	c.settled = false
	c.fetching = false
	c.summary = nil
	c.stopTimers()
	c.resetRoundMarks()
	c.stage = domain.StageLoading
}

func (c *Controller) resetRoundMarks() {
	c.answeredIdx, c.roundIdx, c.revealIdx = -1, -1, -1
}

// fetchQuestions generates and stores the match questions. The fetching flag
// stays set once the questions (or the abandonment after a generation failure)
// are stored, and is released when that write fails.
func (c *Controller) fetchQuestions() {
	s := c.session
	if c.role != domain.RolePlayer1 || c.fetching || s == nil || len(s.Questions) > 0 {
		return
	}
	c.fetching = true
	gameID, settings, generation := c.gameID, c.settings, c.generation
	release := func() {
		if c.generation == generation {
			c.fetching = false
		}
	}

	c.goAsync(func() {
		ctx, cancel := c.boundedContext(settings.GenerateTimeout)
		questions, err := GenerateQuestions(ctx, c.questions, settings.Topic, settings.QuestionCount, settings.Difficulty)
		cancel()
		if err != nil {
			c.logger.Error().Err(err).Msg("question generation failed, abandoning match")
			werr := c.doWrite("abandon after generation failure", func(ctx context.Context) error {
				return c.sessions.SetStatus(ctx, gameID, domain.StatusAbandoned)
			})
			c.post(func() {
				c.errKey = ErrKeyGeneratingQuestions
				if werr != nil {
					release()
				}
			})
			return
		}
		if werr := c.doWrite("set questions", func(ctx context.Context) error {
			return c.sessions.SetQuestions(ctx, gameID, questions)
		}); werr != nil {
			c.post(release)
		}
	})
}

func (c *Controller) startCountdown() {
	c.stopCountdown()
	c.countdown = c.settings.CountdownTicks
	if c.countdown <= 0 {
		c.beginMatch()
		return
	}
	c.countdownTkr = c.clock.NewTicker(c.settings.TickInterval)
}

func (c *Controller) onCountdownTick() {
	if c.stage != domain.StagePreparingMatch {
		c.stopCountdown()
		return
	}
	c.countdown--
	if c.countdown > 0 {
		return
	}
	c.stopCountdown()
	c.beginMatch()
}

func (c *Controller) beginMatch() {
	c.generation++
	c.settled = false
	c.summary = nil
	c.resetRoundMarks()
	c.stage = domain.StageActive
	c.syncRound()
	c.maybeReveal()
}

// syncRound arms the local round timer once per question and stops it when
// the local player has answered.
func (c *Controller) syncRound() {
	s := c.session
	if c.stage != domain.StageActive || s == nil || s.CurrentQuestion() == nil {
		return
	}
	me := s.Player(c.role)
	if c.roundIdx != s.CurrentQuestionIndex {
		c.roundIdx = s.CurrentQuestionIndex
		c.stopRoundTimer()
		if me != nil && !me.HasAnsweredThisRound {
			c.armRoundTimer()
		}
		return
	}
	if me != nil && me.HasAnsweredThisRound {
		c.stopRoundTimer()
	}
}

func (c *Controller) armRoundTimer() {
	c.stopRoundTimer()
	c.timeLeft = c.settings.RoundTicks
	c.timerActive = true
	c.roundTkr = c.clock.NewTicker(c.settings.TickInterval)
}

// resumeRoundTimer restarts the round clock where it stopped, after the answer
// for question idx could not be stored. An expired clock fires on the next tick.
func (c *Controller) resumeRoundTimer(idx int) {
	s := c.session
	if c.stage != domain.StageActive || s == nil || s.CurrentQuestionIndex != idx {
		return
	}
	if me := s.Player(c.role); me == nil || me.HasAnsweredThisRound {
		return
	}
	c.stopRoundTimer()
	if c.timeLeft <= 0 {
		c.timeLeft = 1
	}
	c.timerActive = true
	c.roundTkr = c.clock.NewTicker(c.settings.TickInterval)
}

func (c *Controller) onRoundTick() {
	if c.stage != domain.StageActive || !c.timerActive {
		c.stopRoundTimer()
		return
	}
	c.timeLeft--
	if c.timeLeft > 0 {
		return
	}
	c.stopRoundTimer()
	c.submitAnswer(nil)
}

func (c *Controller) submitAnswer(index *int) {
	s := c.session
	if !c.role.IsPlayer() || c.stage != domain.StageActive || s == nil {
		return
	}
	q := s.CurrentQuestion()
	me := s.Player(c.role)
	if q == nil || me == nil || me.HasAnsweredThisRound || c.answeredIdx == s.CurrentQuestionIndex {
		return
	}
	if index != nil && (*index < 0 || *index >= len(q.Answers)) {
		return
	}

	idx, generation := s.CurrentQuestionIndex, c.generation
	c.answeredIdx = idx
	c.stopRoundTimer()

	score := ScoreAnswer(me.Score, q, index)
	answered := true
	update := PlayerUpdate{
		Score:                &score,
		HasAnsweredThisRound: &answered,
		AnswerSet:            true,
		CurrentAnswerIndex:   index,
	}
	gameID, role := c.gameID, c.role
	c.writeOr("submit answer", func(ctx context.Context) error {
		return c.sessions.UpdatePlayerField(ctx, gameID, role, update)
	}, func() {
		if c.generation != generation || c.answeredIdx != idx {
			return
		}
		c.answeredIdx = -1
		c.resumeRoundTimer(idx)
	})
}

// maybeReveal schedules the advance-or-finish write once per question. Only
// player1 writes it.
func (c *Controller) maybeReveal() {
	s := c.session
	if c.role != domain.RolePlayer1 || c.stage != domain.StageActive || s == nil || !s.BothAnswered() {
		return
	}
	c.stopRoundTimer()
	if c.revealIdx == s.CurrentQuestionIndex {
		return
	}
	c.revealIdx = s.CurrentQuestionIndex
	c.stopReveal()
	c.revealTmr = c.clock.NewTimer(c.settings.RevealDelay)
}

func (c *Controller) onReveal() {
	s := c.session
	if c.stage != domain.StageActive || s == nil || s.Status.IsTerminal() || s.CurrentQuestionIndex != c.revealIdx {
		return
	}
	c.advanceOrFinish(s)
}

func (c *Controller) advanceOrFinish(s *domain.GameSession) {
	gameID, idx, generation := c.gameID, s.CurrentQuestionIndex, c.generation
	// reschedule the reveal when the write did not land
	retry := func() {
		if c.generation != generation || c.revealIdx != idx {
			return
		}
		c.revealIdx = -1
		c.maybeReveal()
	}
	if hasMoreQuestions(s) {
		next := idx + 1
		c.writeOr("advance question", func(ctx context.Context) error {
			return c.sessions.SetQuestionIndex(ctx, gameID, next)
		}, retry)
		return
	}
	status := FinalStatus(s.Player1, s.Player2)
	c.logger.Info().Str("status", string(status)).Msg("match finished")
	c.writeOr("finish match", func(ctx context.Context) error {
		return c.sessions.SetStatus(ctx, gameID, status)
	}, retry)
}

// maybeSettle banks this client's points once per match instance.
func (c *Controller) maybeSettle() {
	s := c.session
	if c.stage != domain.StageGameOver || c.settled || s == nil || !s.Status.IsTerminal() {
		return
	}
	c.settled = true
	summary, delta := Settle(s, c.role)
	if !c.role.IsPlayer() {
		c.summary = &summary
		return
	}

	userID, generation := c.user.ID, c.generation
	c.goAsync(func() {
		ctx, cancel := c.boundedContext(c.settings.WriteTimeout)
		total, err := c.points.AddPoints(ctx, userID, delta)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Int("delta", delta).Msg("points settlement failed")
		} else {
			c.logger.Info().Int("delta", delta).Int("total", total).Msg("points settled")
		}
		c.post(func() {
			if c.generation != generation {
				return
			}
			if err == nil {
				summary.NewTotalPoints = &total
			}
			c.summary = &summary
		})
	})
}

func (c *Controller) reset() {
	s := c.session
	if c.role != domain.RolePlayer1 || s == nil || !s.Status.IsTerminal() {
		return
	}
	gameID, player1ID, player2ID := c.gameID, c.user.ID, ""
	if s.Player2 != nil {
		player2ID = s.Player2.UserID
	}
	c.write("reset match", func(ctx context.Context) error {
		return c.sessions.Reset(ctx, gameID, player1ID, player2ID)
	})
	c.recycle()
	c.errKey = ""
	c.awaitReset = true
}

func (c *Controller) teardown() {
	close(c.stopped)
	c.stopTimers()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if s := c.session; s != nil && s.Status == domain.StatusActive && c.role.IsPlayer() {
		c.abandon()
	}
	c.wg.Wait()
	close(c.views)
}

// abandon penalises the leaving player and ends the match for the other one.
func (c *Controller) abandon() {
	c.logger.Info().Int("penalty", c.settings.AbandonPenalty).Msg("leaving active match")
	userID, gameID, penalty := c.user.ID, c.gameID, c.settings.AbandonPenalty
	c.write("abandon penalty", func(ctx context.Context) error {
		_, err := c.points.AddPoints(ctx, userID, -penalty)
		return err
	})
	c.write("abandon match", func(ctx context.Context) error {
		return c.sessions.SetStatus(ctx, gameID, domain.StatusAbandoned)
	})
}

func (c *Controller) view() View {
	v := View{
		GameID:      c.gameID,
		Role:        c.role,
		Stage:       c.stage,
		Session:     c.session,
		Countdown:   c.countdown,
		TimeLeft:    c.timeLeft,
		TimerActive: c.timerActive,
		Error:       c.errKey,
		Summary:     c.summary,
	}
	if c.stage == domain.StageActive && c.session != nil {
		v.RevealAnswers = c.session.BothAnswered()
	}
	return v
}

func (c *Controller) publish() {
	offerLatest(c.views, c.view())
}

func (c *Controller) write(op string, fn func(context.Context) error) {
	c.writeOr(op, fn, nil)
}

// writeOr is write with onFail posted to the Run goroutine when fn fails.
func (c *Controller) writeOr(op string, fn func(context.Context) error, onFail func()) {
	c.goAsync(func() {
		if err := c.doWrite(op, fn); err != nil && onFail != nil {
			c.post(onFail)
		}
	})
}

func (c *Controller) doWrite(op string, fn func(context.Context) error) error {
	ctx, cancel := c.boundedContext(c.settings.WriteTimeout)
	defer cancel()
	err := fn(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("session write failed")
	}
	return err
}

// boundedContext outlives Run's cancellation so teardown writes still land.
func (c *Controller) boundedContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(c.writeBase)
	}
	return context.WithTimeout(c.writeBase, timeout)
}

func (c *Controller) goAsync(fn func()) {
	c.wg.Add(1)
	c.spawn(func() {
		defer c.wg.Done()
		fn()
	})
}

// post hands fn to the Run goroutine. It is dropped once Run has returned.
func (c *Controller) post(fn func()) {
	select {
	case c.results <- fn:
	case <-c.stopped:
	}
}

func (c *Controller) stopTimers() {
	c.stopCountdown()
	c.stopRoundTimer()
	c.stopReveal()
}

func (c *Controller) stopCountdown() {
	if c.countdownTkr != nil {
		c.countdownTkr.Stop()
		c.countdownTkr = nil
	}
}

func (c *Controller) stopRoundTimer() {
	if c.roundTkr != nil {
		c.roundTkr.Stop()
		c.roundTkr = nil
	}
	c.timerActive = false
}

func (c *Controller) stopReveal() {
	if c.revealTmr != nil {
		c.revealTmr.Stop()
		c.revealTmr = nil
	}
}

func tickerChan(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}

func timerChan(t clockwork.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}
