package search

import "github.com/linesmerrill/mission-search-api/models"

// visibility gates which publishers' missions a widget may surface.
//
// Without moderation every listed publisher contributes its own accepted
// missions. With moderation the moderator's missions are shown directly (when
// the moderator is listed) and every other publisher's missions need an
// accepted moderation row from the moderator.
func visibility(w *models.Widget, moderatorID string) Predicate {
	if len(w.Publishers) == 0 {
		return MatchNone{}
	}
	if !w.JvaModeration {
		return AllOf(
			Leaf{Field: FieldPublisherID, Op: OpIn, Value: w.Publishers},
			Leaf{Field: FieldStatusCode, Op: OpEq, Value: models.StatusAccepted},
		)
	}

	var direct Predicate
	others := make([]string, 0, len(w.Publishers))
	for _, p := range w.Publishers {
		if p == moderatorID {
			direct = Leaf{Field: FieldPublisherID, Op: OpEq, Value: moderatorID}
			continue
		}
		others = append(others, p)
	}

	var terms []Predicate
	if direct != nil {
		terms = append(terms, direct)
	}
	if len(others) > 0 {
		terms = append(terms, AllOf(
			Leaf{Field: FieldPublisherID, Op: OpIn, Value: others},
			Moderated{PublisherID: moderatorID, Status: models.StatusAccepted},
		))
	}
	return AnyOf(terms...)
}

// displayTitle is the title a widget shows for m: the moderator's custom
// title when the widget is moderated and one was set
func displayTitle(m models.Mission, w *models.Widget, moderatorID string) string {
	if w != nil && w.JvaModeration {
		if mod, ok := m.ModerationFor(moderatorID); ok && mod.Title != "" {
			return mod.Title
		}
	}
	return m.Title
}
