package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/logger"
)

// Service implements the filter engine plus rule-group management. The card,
// message, and CC-fetcher collaborators are optional; without them the
// cclist condition simply never matches.
type Service struct {
	repo     Repository
	config   ConfigRepository
	cards    CardStore
	messages MessageStore
	ccFetch  CCListFetcher
}

// NewService creates a filter service.
func NewService(repo Repository, config ConfigRepository, cards CardStore, messages MessageStore, ccFetch CCListFetcher) *Service {
	return &Service{repo: repo, config: config, cards: cards, messages: messages, ccFetch: ccFetch}
}

// ShouldCreatePatchCard evaluates every enabled filter against the message
// and combines the outcome with the global exclusive mode.
//
// With no enabled filters at all, creation is always allowed. In exclusive
// mode at least one filter must match; otherwise creation is always allowed
// and the matched names are decorative.
func (s *Service) ShouldCreatePatchCard(ctx context.Context, msg *domain.FeedMessage) (bool, []string, error) {
	filters, err := s.repo.FindAll(ctx, true)
	if err != nil {
		return false, nil, fmt.Errorf("load enabled filters: %w", err)
	}
	if len(filters) == 0 {
		return true, nil, nil
	}

	exclusive := false
	if s.config != nil {
		exclusive, err = s.config.ExclusiveMode(ctx)
		if err != nil {
			return false, nil, fmt.Errorf("load exclusive mode: %w", err)
		}
	}

	var matched []string
	for _, f := range filters {
		if s.matchesFilter(ctx, msg, &f) {
			matched = append(matched, f.Name)
		}
	}

	if exclusive && len(matched) == 0 {
		logger.Info("suppressed patch card in exclusive mode",
			"message_id", msg.MessageIDHeader,
			"subject", msg.Subject)
		return false, nil, nil
	}
	if len(matched) > 0 {
		logger.Debug("filters matched",
			"message_id", msg.MessageIDHeader,
			"filters", strings.Join(matched, ","))
	}
	return true, matched, nil
}

// ExclusiveMode returns the global exclusive-mode flag.
func (s *Service) ExclusiveMode(ctx context.Context) (bool, error) {
	return s.config.ExclusiveMode(ctx)
}

// SetExclusiveMode updates the global exclusive-mode flag.
func (s *Service) SetExclusiveMode(ctx context.Context, enabled bool) error {
	return s.config.SetExclusiveMode(ctx, enabled)
}

// matchesFilter reports whether every condition of the filter holds for the
// message (AND within a group).
func (s *Service) matchesFilter(ctx context.Context, msg *domain.FeedMessage, f *domain.PatchCardFilter) bool {
	for field, cond := range f.Conditions {
		if !s.matchCondition(ctx, msg, field, cond) {
			return false
		}
	}
	return true
}

// matchCondition dispatches one (field, condition) pair.
func (s *Service) matchCondition(ctx context.Context, msg *domain.FeedMessage, field string, cond domain.Condition) bool {
	switch field {
	case domain.FilterFieldKeywords:
		if msg.Content == "" {
			return false
		}
		return matchValue(msg.Content, cond)
	case domain.FilterFieldCCList, domain.FilterFieldCC:
		return s.matchCCCondition(ctx, msg, cond)
	case domain.FilterFieldAuthor:
		return matchValue(msg.Author, cond)
	case domain.FilterFieldAuthorEmail:
		return matchValue(msg.AuthorEmail, cond)
	case domain.FilterFieldSubsys, domain.FilterFieldSubsystem:
		return matchValue(msg.SubsystemName, cond)
	case domain.FilterFieldSubject:
		return matchValue(msg.Subject, cond)
	}
	return false
}

// matchCCCondition matches against the space-joined To+CC list of the series
// root. For a cover letter or standalone PATCH the message's own URL is the
// root; for a sub-patch the cached card list is preferred, then the root
// message's URL. Without either, the condition does not match.
func (s *Service) matchCCCondition(ctx context.Context, msg *domain.FeedMessage, cond domain.Condition) bool {
	isRoot := msg.IsCoverLetter || msg.PatchIndex == 0 || !msg.IsSeriesPatch

	rootURL := ""
	if isRoot {
		rootURL = msg.URL
	}

	if rootURL == "" && msg.SeriesMessageID != "" {
		if s.cards != nil {
			card, err := s.cards.FindByMessageIDHeader(ctx, msg.SeriesMessageID)
			if err == nil && card != nil && len(card.ToCCList) > 0 {
				return matchValue(strings.Join(card.ToCCList, " "), cond)
			}
		}
		if s.messages != nil {
			root, err := s.messages.FindByMessageIDHeader(ctx, msg.SeriesMessageID)
			if err == nil && root != nil && root.URL != "" {
				rootURL = root.URL
			}
		}
	}

	if rootURL == "" || s.ccFetch == nil {
		return false
	}

	toCC, err := s.ccFetch.FetchCCList(ctx, rootURL)
	if err != nil {
		logger.Warn("fetch cc list failed", "url", rootURL, "error", err)
		return false
	}
	if len(toCC) == 0 {
		return false
	}
	return matchValue(strings.Join(toCC, " "), cond)
}

// matchValue ORs the condition's patterns against one value.
func matchValue(val string, cond domain.Condition) bool {
	if val == "" {
		return false
	}
	for _, pattern := range cond.Patterns() {
		if matchSinglePattern(val, pattern) {
			return true
		}
	}
	return false
}

// matchSinglePattern applies one pattern: /re/ is a case-sensitive regex,
// /re/i case-insensitive, anything else a case-insensitive substring. The
// substring/regex case asymmetry is deliberate and documented to users.
func matchSinglePattern(val, pattern string) bool {
	if expr, insensitive, ok := parseRegexPattern(pattern); ok {
		if insensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			logger.Warn("invalid regex pattern", "pattern", pattern, "error", err)
			return false
		}
		return re.MatchString(val)
	}
	return strings.Contains(strings.ToLower(val), strings.ToLower(pattern))
}

// parseRegexPattern recognizes /re/ and /re/i forms.
func parseRegexPattern(pattern string) (expr string, insensitive, ok bool) {
	if !strings.HasPrefix(pattern, "/") {
		return "", false, false
	}
	if strings.HasSuffix(pattern, "/i") && len(pattern) > 3 {
		return pattern[1 : len(pattern)-2], true, true
	}
	if strings.HasSuffix(pattern, "/") && len(pattern) > 2 {
		return pattern[1 : len(pattern)-1], false, true
	}
	return "", false, false
}

// ===== rule-group management =====

// CreateFilter creates a rule group, or merges the new conditions into an
// existing group with the same name (normalized-pattern dedup).
func (s *Service) CreateFilter(ctx context.Context, name string, conditions domain.FilterConditions, description, createdBy string, enabled bool) (*domain.PatchCardFilter, error) {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find filter %q: %w", name, err)
	}

	if existing != nil {
		existing.Conditions = mergeConditions(existing.Conditions, conditions)
		existing.Enabled = enabled
		if description != "" {
			existing.Description = description
		}
		if createdBy != "" {
			existing.CreatedBy = createdBy
		}
		if err := s.repo.Update(ctx, existing.ID, existing); err != nil {
			return nil, fmt.Errorf("update filter %q: %w", name, err)
		}
		return existing, nil
	}

	f := &domain.PatchCardFilter{
		Name:        name,
		Enabled:     enabled,
		Conditions:  conditions,
		Description: description,
		CreatedBy:   createdBy,
	}
	id, err := s.repo.Create(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("create filter %q: %w", name, err)
	}
	f.ID = id
	return f, nil
}

// ListFilters lists rule groups, optionally only enabled ones.
func (s *Service) ListFilters(ctx context.Context, enabledOnly bool) ([]domain.PatchCardFilter, error) {
	return s.repo.FindAll(ctx, enabledOnly)
}

// GetFilter looks a rule group up by name.
func (s *Service) GetFilter(ctx context.Context, name string) (*domain.PatchCardFilter, error) {
	f, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	return f, nil
}

// DeleteFilter removes a rule group by name.
func (s *Service) DeleteFilter(ctx context.Context, name string) error {
	f, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if f == nil {
		return ErrNotFound
	}
	deleted, err := s.repo.Delete(ctx, f.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// ClearFilters removes every rule group and returns how many were deleted.
func (s *Service) ClearFilters(ctx context.Context) (int, error) {
	filters, err := s.repo.FindAll(ctx, false)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, f := range filters {
		deleted, err := s.repo.Delete(ctx, f.ID)
		if err != nil {
			return count, err
		}
		if deleted {
			count++
		}
	}
	return count, nil
}

// ToggleFilter enables or disables a rule group. A nil enabled flips the
// current state.
func (s *Service) ToggleFilter(ctx context.Context, name string, enabled *bool) error {
	f, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if f == nil {
		return ErrNotFound
	}
	target := !f.Enabled
	if enabled != nil {
		target = *enabled
	}
	return s.repo.ToggleEnabled(ctx, f.ID, target)
}

// AddCondition appends a pattern to the given condition type of a rule
// group, promoting a scalar to a list when needed. Duplicate patterns
// (compared after quote stripping) are silently ignored.
func (s *Service) AddCondition(ctx context.Context, name, field, pattern string) (*domain.PatchCardFilter, error) {
	f, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}

	conditions := cloneConditions(f.Conditions)
	existing, ok := conditions[field]
	if !ok {
		conditions[field] = domain.NewCondition(pattern)
	} else {
		normalized := normalizePattern(pattern)
		for _, p := range existing.Patterns() {
			if normalizePattern(p) == normalized {
				return f, nil
			}
		}
		conditions[field] = domain.NewConditionList(append(existing.Patterns(), pattern)...)
	}

	f.Conditions = conditions
	if err := s.repo.Update(ctx, f.ID, f); err != nil {
		return nil, fmt.Errorf("update filter %q: %w", name, err)
	}
	return f, nil
}

// RemoveCondition deletes one pattern from a condition type. Removing the
// last pattern removes the type; an empty rule group is kept so the user can
// add conditions later.
func (s *Service) RemoveCondition(ctx context.Context, name, field, pattern string) (*domain.PatchCardFilter, error) {
	f, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}

	conditions := cloneConditions(f.Conditions)
	existing, ok := conditions[field]
	if !ok {
		return nil, ErrConditionNotFound
	}

	normalized := normalizePattern(pattern)
	var remaining []string
	removed := false
	for _, p := range existing.Patterns() {
		if normalizePattern(p) == normalized {
			removed = true
			continue
		}
		remaining = append(remaining, p)
	}
	if !removed {
		return nil, ErrConditionNotFound
	}

	if len(remaining) == 0 {
		delete(conditions, field)
	} else {
		conditions[field] = domain.NewConditionList(remaining...)
	}

	f.Conditions = conditions
	if err := s.repo.Update(ctx, f.ID, f); err != nil {
		return nil, fmt.Errorf("update filter %q: %w", name, err)
	}
	return f, nil
}

// RemoveTypes deletes whole condition types from a rule group.
func (s *Service) RemoveTypes(ctx context.Context, name string, fields []string) (*domain.PatchCardFilter, error) {
	f, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}

	conditions := cloneConditions(f.Conditions)
	removed := 0
	for _, field := range fields {
		if _, ok := conditions[field]; ok {
			delete(conditions, field)
			removed++
		}
	}
	if removed == 0 {
		return nil, ErrConditionNotFound
	}

	f.Conditions = conditions
	if err := s.repo.Update(ctx, f.ID, f); err != nil {
		return nil, fmt.Errorf("update filter %q: %w", name, err)
	}
	return f, nil
}

// SupportedTypes lists the recognized condition fields with descriptions.
func (s *Service) SupportedTypes() map[string]string {
	return domain.SupportedFilterFields()
}

// mergeConditions combines new conditions into existing ones, deduplicating
// by normalized pattern and preserving the scalar shape where nothing was
// added.
func mergeConditions(existing, incoming domain.FilterConditions) domain.FilterConditions {
	merged := cloneConditions(existing)
	for field, newCond := range incoming {
		cur, ok := merged[field]
		if !ok {
			merged[field] = newCond
			continue
		}

		patterns := cur.Patterns()
		seen := make(map[string]bool, len(patterns))
		for _, p := range patterns {
			seen[normalizePattern(p)] = true
		}
		added := false
		for _, p := range newCond.Patterns() {
			if !seen[normalizePattern(p)] {
				seen[normalizePattern(p)] = true
				patterns = append(patterns, p)
				added = true
			}
		}
		if added || !cur.IsScalar() || !newCond.IsScalar() {
			merged[field] = domain.NewConditionList(patterns...)
		}
	}
	return merged
}

func cloneConditions(in domain.FilterConditions) domain.FilterConditions {
	out := make(domain.FilterConditions, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// normalizePattern strips surrounding quotes and whitespace so user-typed
// values compare consistently.
func normalizePattern(pattern string) string {
	s := strings.TrimSpace(pattern)
	if len(s) >= 2 {
		if (strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)) ||
			(strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'")) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
