package model

import (
	"fmt"

	"github.com/bobonovski/lltm/corpus"
)

func init() {
	Register("sentiment-topic", NewSentimentTopic)
	Register("event", NewEvent)
}

// NewSentimentTopic samples a (sentiment, topic) label for every word
func NewSentimentTopic(numOuter, numInner, numEvents uint32) (corpus.Stream, LabelSpace, error) {
	if numOuter == 0 || numInner == 0 {
		return corpus.Words, LabelSpace{}, fmt.Errorf("sentiment-topic needs outer and inner labels, got %dx%d", numOuter, numInner)
	}
	return corpus.Words, LabelSpace{NumOuter: numOuter, NumInner: numInner}, nil
}

// NewEvent samples a single event label for every entity mention
func NewEvent(numOuter, numInner, numEvents uint32) (corpus.Stream, LabelSpace, error) {
	if numEvents == 0 {
		return corpus.Entities, LabelSpace{}, fmt.Errorf("event model needs at least one event")
	}
	return corpus.Entities, Flat(numEvents), nil
}
