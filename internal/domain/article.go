package domain

import "time"

// Article is one syndication entry normalized from a configured feed.
// Created fresh on every fetch and never mutated.
type Article struct {
	ID          string
	Source      string
	Title       string
	URL         string
	SummaryRaw  string
	PublishedAt time.Time
}

// ReasonTag names one satisfied editorial criterion for a curated article.
type ReasonTag string

const (
	ReasonNew       ReasonTag = "new"
	ReasonPractical ReasonTag = "practical"
	ReasonDeep      ReasonTag = "deep"
)

// ValidReason reports whether the tag is one of the known criteria.
func ValidReason(tag ReasonTag) bool {
	switch tag {
	case ReasonNew, ReasonPractical, ReasonDeep:
		return true
	}
	return false
}

// CuratedItem is an article promoted into a daily digest.
type CuratedItem struct {
	ArticleID    string
	Source       string
	Title        string
	URL          string
	Summary      string
	Reasons      []ReasonTag
	CoreContent  string
	WhatYouLearn string
	ActionAdvice string
}

// DayRecord is the persisted digest for one calendar date. Item order is
// the curator's ranking, most relevant first.
type DayRecord struct {
	Date          string
	Items         []CuratedItem
	GeneratedAt   time.Time
	SourceCount   int
	FailedSources []string
}

// FetchReport aggregates one run of the feed reader across all sources.
type FetchReport struct {
	Articles      []Article
	SourceCount   int
	FailedSources []string
}

// DateKey formats a day in the canonical record-key layout.
func DateKey(day time.Time) string {
	return day.Format("2006-01-02")
}
