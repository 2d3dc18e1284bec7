package categorizer

import "errors"

// Input contract errors.
var (
	// ErrInvalidRuleTable indicates the label rule table failed schema validation.
	ErrInvalidRuleTable = errors.New("invalid rule table")

	// ErrUnknownLabelIndex indicates a ground-truth entry references an index missing from the rule table.
	ErrUnknownLabelIndex = errors.New("unknown label index")

	// ErrInvalidPrediction indicates a prediction carries neither a label nor a ranked list, or both.
	ErrInvalidPrediction = errors.New("invalid prediction")

	// ErrInvalidGroundTruth indicates a ground-truth entry lacks its text or label, or carries unknown fields.
	ErrInvalidGroundTruth = errors.New("invalid ground-truth entry")

	// ErrEmptyScores indicates a paragraph produced no (label, score) pairs at all.
	ErrEmptyScores = errors.New("empty score set")
)

// Validation errors.
var (
	// ErrNoMatchedPredictions indicates no prediction text overlaps the ground-truth corpus.
	ErrNoMatchedPredictions = errors.New("no predictions match ground truth")
)

// Classifier errors.
var (
	// ErrClassifierClosed indicates the classifier was used after Close.
	ErrClassifierClosed = errors.New("classifier is not initialized")

	// ErrUnknownText indicates a fixture classifier has no recorded scores for a paragraph.
	ErrUnknownText = errors.New("no recorded scores for text")
)
