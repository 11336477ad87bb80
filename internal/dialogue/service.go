package dialogue

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/lectigo/lectigo/internal/ai"
	"github.com/lectigo/lectigo/internal/models"
)

// JobPublisher enqueues summary generation for sessions finalized with
// pending messages. Optional; without one summaries are generated inline.
type JobPublisher interface {
	PublishSummaryJob(ctx context.Context, jobID string) error
}

// Service is the dialogue orchestrator. One HandleTurn call processes one
// user utterance: analyze parameters, run the current stage's handler,
// apply the transition policy and commit every mutation atomically.
type Service struct {
	repo      *Repo
	gen       *ai.Safe
	analyzer  *Analyzer
	extractor *Extractor
	selector  *Selector
	intents   *IntentClassifier
	publisher JobPublisher
	window    int
	rnd       *rand.Rand
}

func NewService(repo *Repo, gen *ai.Safe, publisher JobPublisher, contextWindow int) *Service {
	if contextWindow <= 0 || contextWindow > 50 {
		contextWindow = 6
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Service{
		repo:      repo,
		gen:       gen,
		analyzer:  NewAnalyzer(gen),
		extractor: NewExtractor(gen),
		selector:  NewSelector(gen, rnd),
		intents:   NewIntentClassifier(gen),
		publisher: publisher,
		window:    contextWindow,
		rnd:       rnd,
	}
}

// turnContext carries one turn's working state between the stage handlers.
type turnContext struct {
	ctx       context.Context
	user      *models.User
	sess      *Session
	mut       *TurnMutation
	utterance string
	intent    Intent
	recent    []Message // messages before this turn, oldest first
	progress  []ProgressEntry
	msgCount  int // log length including this turn's inbound message
}

// TurnResult is what one processed turn hands back to the transport
// layer: the reply text plus the persisted inbound message. UserMessage
// is nil for turns on finalized sessions, which append nothing.
type TurnResult struct {
	Reply       string
	UserMessage *Message
}

// HandleTurn processes one user utterance and returns the turn result.
// reportedEmotion is the emotion the client attached to the utterance,
// if any; it is stored on the inbound message when it is in vocabulary.
// HandleTurn fails only when the user or session cannot be loaded or the
// final commit fails; generation and classification problems degrade to
// safe fallback text.
func (s *Service) HandleTurn(ctx context.Context, userID uint64, sessionID string, utterance, reportedEmotion string) (*TurnResult, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess, err := s.repo.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	// A finalized session is terminal: answer without touching state.
	if sess.Finalized {
		return &TurnResult{Reply: s.closedReply(ctx, sess)}, nil
	}

	recent, err := s.repo.RecentMessages(ctx, sessionID, s.window)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.ListProgress(ctx, sessionID, 3)
	if err != nil {
		return nil, err
	}

	mut := &TurnMutation{User: user, Session: sess}
	now := time.Now()

	// Parameter analysis first; its outcome steers everything below.
	classified := s.analyzer.Analyze(ctx, utterance)
	merged := sess.Params().Merge(classified)
	sess.SetParams(merged)
	mut.Snapshots = append(mut.Snapshots, ParamSnapshot{
		SessionID:   sess.SessionID,
		Comprension: merged.Comprension,
		Emocion:     merged.Emocion,
		Motivacion:  merged.Motivacion,
		CreatedAt:   now,
	})

	// The client-reported emotion wins on the message row; the classifier
	// keeps driving the session parameters either way.
	msgEmotion := merged.Emocion
	if reported := strings.ToLower(strings.TrimSpace(reportedEmotion)); validEmotion(reported) {
		msgEmotion = reported
	}
	mut.Messages = append(mut.Messages, &Message{
		SessionID: sess.SessionID,
		Sender:    SenderUser,
		Content:   utterance,
		Emotion:   msgEmotion,
		CreatedAt: now,
	})

	if classified.Emocion == EmotionNegativa {
		mut.Emotional = append(mut.Emotional, models.EmotionalEntry{
			UserID:    user.ID,
			Emotion:   EmotionNegativa,
			Intensity: emotionIntensity(merged),
			CreatedAt: now,
		})
	}

	tc := &turnContext{
		ctx:       ctx,
		user:      user,
		sess:      sess,
		mut:       mut,
		utterance: utterance,
		intent:    s.intents.Classify(ctx, utterance),
		recent:    recent,
		progress:  progress,
		msgCount:  int(count) + 1,
	}

	var reply string
	if tc.intent.WantsToEnd && sess.Stage != StageClosing && advanceStage(sess, StageClosing) {
		reply = s.handleClosing(tc)
	} else {
		switch sess.Stage {
		case StageGreeting:
			reply = s.handleGreeting(tc)
		case StageDiagnostic:
			reply = s.handleDiagnostic(tc)
		case StageExploration:
			reply = s.handleExploration(tc)
		case StageActivity:
			reply = s.handleActivity(tc)
		case StageClosing:
			reply = s.handleClosing(tc)
		default:
			reply = "¡Ups! No entendí en qué parte de la conversación estamos. ¿Puedes intentarlo de nuevo?"
			s.reply(tc, reply)
		}
	}

	if err := s.repo.CommitTurn(ctx, mut); err != nil {
		return nil, err
	}
	return &TurnResult{Reply: reply, UserMessage: mut.Messages[0]}, nil
}

// reply records an outbound agent message with the current parameter
// snapshot and returns its text.
func (s *Service) reply(tc *turnContext, text string) string {
	snap, _ := json.Marshal(tc.sess.Params())
	tc.mut.Messages = append(tc.mut.Messages, &Message{
		SessionID: tc.sess.SessionID,
		Sender:    SenderAgent,
		Content:   text,
		Emotion:   tc.sess.Emocion,
		Params:    datatypes.JSON(snap),
		CreatedAt: time.Now(),
	})
	tc.msgCount++
	return text
}

func (s *Service) handleGreeting(tc *turnContext) string {
	// Low affect stalls the flow: empathy before progress.
	if lowAffect(tc.sess.Params()) {
		return s.reply(tc, s.empatheticText(tc))
	}

	text := s.gen.Ask(tc.ctx, greetingPrompt(tc.user))
	advanceStage(tc.sess, StageDiagnostic)
	return s.reply(tc, text)
}

func (s *Service) handleDiagnostic(tc *turnContext) string {
	sess := tc.sess

	// Negative emotion suspends question-asking; this turn does not count
	// as a diagnostic step.
	if sess.Emocion == EmotionNegativa {
		prompt, kind := s.selector.Select(tc.ctx, sess, formatProgressHistory(tc.progress))
		sess.LastActivity = kind
		text, err := s.gen.TryAsk(tc.ctx, prompt)
		if err != nil || text == "" {
			text = motivationalMessage(s.rnd, EmotionNegativa)
		}
		return s.reply(tc, text)
	}

	// Resolve a pending book guess before anything else.
	if sess.AwaitingBook && sess.SuggestedBook != "" {
		if s.extractor.ConfirmBook(tc.ctx, tc.utterance, sess.SuggestedBook) {
			sess.Book = sess.SuggestedBook
		}
		sess.AwaitingBook = false
		sess.SuggestedBook = ""
	}

	// Try to pull every still-missing datum out of this utterance.
	for _, f := range missingFields(tc.user, sess) {
		switch f {
		case FieldName:
			if name, ok := s.extractor.ExtractName(tc.ctx, tc.utterance); ok {
				tc.user.Name = name
			}
		case FieldAge:
			if age, ok := s.extractor.ExtractAge(tc.ctx, tc.utterance); ok {
				tc.user.Age = &age
			}
		case FieldBook:
			res := s.extractor.ExtractBook(tc.ctx, tc.utterance)
			switch {
			case res.Confirmed:
				sess.Book = res.Title
			case res.Suggested:
				sess.AwaitingBook = true
				sess.SuggestedBook = res.Title
				return s.reply(tc, bookConfirmPrompt(res.Title))
			}
		case FieldProgress:
			if sess.Book == "" {
				continue
			}
			if pct, ok := s.extractor.ExtractProgress(tc.ctx, sess.Book, tc.utterance); ok {
				prev := 0
				if sess.Progress != nil {
					prev = *sess.Progress
				}
				sess.Progress = &pct
				tc.mut.Progress = append(tc.mut.Progress, ProgressEntry{
					SessionID: sess.SessionID,
					Book:      sess.Book,
					Previous:  prev,
					Current:   pct,
					CreatedAt: time.Now(),
				})
			}
		}
	}

	// Still incomplete: ask for exactly one field, highest priority first.
	if missing := missingFields(tc.user, sess); len(missing) > 0 {
		field := missing[0]
		question, err := s.gen.TryAsk(tc.ctx, missingFieldPrompt(field, tc.user, sess, tc.recent))
		if err != nil || question == "" {
			question = cannedQuestions[field]
		}
		return s.reply(tc, question)
	}

	// Diagnostic complete: hand over to exploration on this same turn.
	advanceStage(tc.sess, StageExploration)
	text := s.gen.Ask(tc.ctx, transitionPrompt(sess, progressContext(tc.progress)))
	return s.reply(tc, text)
}

func (s *Service) handleExploration(tc *turnContext) string {
	sess := tc.sess
	params := sess.Params()

	ready := tc.intent.ReadyToAdvance ||
		(tc.msgCount >= explorationThreshold(params) && !lowAffect(params))

	if ready && advanceStage(sess, StageActivity) {
		prompt, kind := s.selector.Select(tc.ctx, sess, formatProgressHistory(tc.progress))
		sess.LastActivity = kind
		return s.reply(tc, s.gen.Ask(tc.ctx, prompt))
	}

	text := s.gen.Ask(tc.ctx, explorationPrompt(tc.user, sess, tc.utterance, progressContext(tc.progress)))
	return s.reply(tc, text)
}

func (s *Service) handleActivity(tc *turnContext) string {
	sess := tc.sess
	params := sess.Params()

	// Close out when the activity lifted the child's state or the session
	// is simply long enough; otherwise loop back to keep them engaged.
	if affectImproved(params) || tc.msgCount >= activityMessageCeiling {
		if advanceStage(sess, StageClosing) {
			return s.handleClosing(tc)
		}
	}

	advanceStage(sess, StageExploration)
	text := s.gen.Ask(tc.ctx, explorationPrompt(tc.user, sess, tc.utterance, progressContext(tc.progress)))
	return s.reply(tc, text)
}

func (s *Service) handleClosing(tc *turnContext) string {
	sess := tc.sess

	// Idempotent: a finalized session never regenerates its summary.
	if sess.Finalized {
		return s.closedReply(tc.ctx, sess)
	}

	summary, err := s.gen.TryAsk(tc.ctx, summaryPrompt(tc.user, sess, tc.recent, tc.progress))
	if err != nil || summary == "" {
		summary = cannedSummary(sess)
	}
	sess.Summary = &summary
	sess.Finalized = true

	text := s.gen.Ask(tc.ctx, closingPrompt(tc.user, sess))
	return s.reply(tc, text)
}

// closedReply answers turns that arrive after the session was finalized.
func (s *Service) closedReply(ctx context.Context, sess *Session) string {
	msgs, err := s.repo.RecentMessages(ctx, sess.SessionID, 5)
	if err == nil {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Sender == SenderAgent {
				return msgs[i].Content
			}
		}
	}
	return "¡Hasta pronto! Ya terminamos esta sesión de lectura, nos vemos en la próxima."
}

// empatheticText generates a warm reply for low-affect stalls, with the
// canned motivational pool as offline fallback.
func (s *Service) empatheticText(tc *turnContext) string {
	text, err := s.gen.TryAsk(tc.ctx, empathyPrompt(tc.user, tc.sess, tc.utterance))
	if err != nil || text == "" {
		return motivationalMessage(s.rnd, tc.sess.Emocion)
	}
	return text
}

func emotionIntensity(p Params) int {
	if p.Motivacion == LevelBaja {
		return 2
	}
	return 1
}

// StartSession opens a fresh session for the user. Any unfinished session
// is closed first: without messages it is just marked finalized, with
// messages its summary is generated asynchronously through the job queue
// (or inline when no publisher is wired).
func (s *Service) StartSession(ctx context.Context, userID uint64) (*Session, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stale, err := s.repo.ListUnfinished(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range stale {
		if err := s.finalizeStale(ctx, user, &stale[i]); err != nil {
			return nil, err
		}
	}

	sess := &Session{
		SessionID:   NewSessionID(),
		UserID:      userID,
		Stage:       StageGreeting,
		Comprension: LevelMedia,
		Emocion:     EmotionNeutra,
		Motivacion:  LevelMedia,
		Objective:   "Fomentar el gusto por la lectura",
		StartedAt:   time.Now(),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) finalizeStale(ctx context.Context, user *models.User, old *Session) error {
	count, err := s.repo.CountMessages(ctx, old.SessionID)
	if err != nil {
		return err
	}

	old.Finalized = true

	// No messages: nothing to summarize, just close it.
	if count == 0 {
		return s.repo.SaveSession(ctx, old)
	}

	if s.publisher != nil {
		job := &SummaryJob{
			ID:        NewSessionID(),
			SessionID: old.SessionID,
			UserID:    old.UserID,
			Status:    JobQueued,
		}
		if err := s.repo.CreateSummaryJob(ctx, job); err != nil {
			return err
		}
		if err := s.repo.SaveSession(ctx, old); err != nil {
			return err
		}
		if err := s.publisher.PublishSummaryJob(ctx, job.ID); err != nil {
			// job row stays queued; the queue is best-effort here
			logrus.WithError(err).WithField("job", job.ID).Warn("summary job publish failed")
		}
		return nil
	}

	// No queue wired: summarize inline with the safe generator.
	msgs, err := s.repo.RecentMessages(ctx, old.SessionID, s.window)
	if err != nil {
		return err
	}
	progress, err := s.repo.ListProgress(ctx, old.SessionID, 3)
	if err != nil {
		return err
	}
	summary := s.gen.Ask(ctx, summaryPrompt(user, old, msgs, progress))
	old.Summary = &summary
	return s.repo.SaveSession(ctx, old)
}

// ProcessSummaryJob is the worker-side handler for queued summary jobs.
func (s *Service) ProcessSummaryJob(ctx context.Context, jobID string) error {
	job, err := s.repo.GetSummaryJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == JobSucceeded {
		return nil
	}
	if err := s.repo.MarkSummaryJobRunning(ctx, jobID); err != nil {
		return err
	}

	user, err := s.repo.GetUser(ctx, job.UserID)
	if err != nil {
		_ = s.repo.MarkSummaryJobFailed(ctx, jobID, err.Error())
		return err
	}
	sess, err := s.repo.GetSession(ctx, job.UserID, job.SessionID)
	if err != nil {
		_ = s.repo.MarkSummaryJobFailed(ctx, jobID, err.Error())
		return err
	}
	msgs, err := s.repo.RecentMessages(ctx, sess.SessionID, 10)
	if err != nil {
		_ = s.repo.MarkSummaryJobFailed(ctx, jobID, err.Error())
		return err
	}
	progress, err := s.repo.ListProgress(ctx, sess.SessionID, 3)
	if err != nil {
		_ = s.repo.MarkSummaryJobFailed(ctx, jobID, err.Error())
		return err
	}

	summary, err := s.gen.TryAsk(ctx, summaryPrompt(user, sess, msgs, progress))
	if err != nil {
		_ = s.repo.MarkSummaryJobFailed(ctx, jobID, err.Error())
		return err
	}

	sess.Summary = &summary
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		_ = s.repo.MarkSummaryJobFailed(ctx, jobID, err.Error())
		return err
	}
	return s.repo.MarkSummaryJobSucceeded(ctx, jobID)
}
