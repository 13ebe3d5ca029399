package ingestion

import "fmt"

// template is one research query pattern. The key term feeds into chunk ids,
// so it must stay stable across releases or re-ingested topics will duplicate.
type template struct {
	// Key is the short stable identifier for this angle of research.
	Key string
	// Pattern is a fmt pattern with one %s placeholder for the topic name.
	Pattern string
}

// queryTemplates is the fixed, ordered set of research angles run for every
// topic. Order matters: chunk ids embed the template key and index, and the
// inter-request delay applies between consecutive entries.
var queryTemplates = []template{
	{Key: "overview", Pattern: "what is %s"},
	{Key: "details", Pattern: "%s detailed explanation"},
	{Key: "facts", Pattern: "%s key facts"},
	{Key: "history", Pattern: "%s history background"},
	{Key: "applications", Pattern: "%s applications uses"},
}

// render produces the concrete search query for a topic name.
func (t template) render(topicName string) string {
	return fmt.Sprintf(t.Pattern, topicName)
}
