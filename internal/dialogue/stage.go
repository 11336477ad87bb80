package dialogue

import "github.com/sirupsen/logrus"

// Stage is the conversation stage. The flow is linear with one loop:
// saludo → diagnostico → exploracion → actividad → cierre, actividad may
// fall back to exploracion, and diagnostico/exploracion/actividad may
// short-circuit to cierre. cierre is terminal.
type Stage string

const (
	StageGreeting    Stage = "saludo"
	StageDiagnostic  Stage = "diagnostico"
	StageExploration Stage = "exploracion"
	StageActivity    Stage = "actividad"
	StageClosing     Stage = "cierre"
)

// stageGraph is the transition allow-list. Anything not listed here is an
// invalid transition and is rejected.
var stageGraph = map[Stage][]Stage{
	StageGreeting:    {StageDiagnostic},
	StageDiagnostic:  {StageExploration, StageClosing},
	StageExploration: {StageActivity, StageClosing},
	StageActivity:    {StageExploration, StageClosing},
	StageClosing:     {},
}

func validTransition(from, to Stage) bool {
	for _, next := range stageGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// advanceStage moves the session to the requested stage if the transition
// graph allows it. A rejected transition leaves the session untouched and
// is logged; it is never an error.
func advanceStage(sess *Session, to Stage) bool {
	if !validTransition(sess.Stage, to) {
		logrus.WithFields(logrus.Fields{
			"session": sess.SessionID,
			"from":    sess.Stage,
			"to":      to,
		}).Warn("invalid stage transition rejected")
		return false
	}
	sess.Stage = to
	return true
}

// Message-count thresholds for stage advancement.
const (
	explorationMinMessages     = 8
	explorationMinMessagesHigh = 5 // when comprehension is alta
	activityMessageCeiling     = 15
)

// explorationThreshold is the minimum message-log length before the
// exploration stage may hand over to an activity.
func explorationThreshold(p Params) int {
	if p.Comprension == LevelAlta {
		return explorationMinMessagesHigh
	}
	return explorationMinMessages
}

// lowAffect reports whether the child's current state blocks normal
// progression: the flow stalls and empathy takes priority.
func lowAffect(p Params) bool {
	return p.Emocion == EmotionNegativa || p.Motivacion == LevelBaja
}

// affectImproved reports whether an activity measurably lifted the child's
// state.
func affectImproved(p Params) bool {
	return p.Motivacion == LevelAlta || p.Emocion == EmotionPositiva
}
