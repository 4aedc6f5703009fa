package biography

import (
	"bufio"
	"context"
	"io"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

const keywordImportBatch = 200

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchKeywords returns up to limit vocabulary entries containing query, case-insensitively.
// A non-positive limit falls back to 10; an empty query matches every entry.
func (s *Service) SearchKeywords(ctx context.Context, query string, limit int) ([]string, error) {
	if err := s.ready(opSearchKeywords); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultKeywordLimit
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"

	keywords := []string{}
	err := s.db.WithContext(ctx).
		Model(&Keyword{}).
		Where(`LOWER("KwText") LIKE ? ESCAPE '\'`, pattern).
		Limit(limit).
		Pluck(columnKwText, &keywords).Error
	if err != nil {
		s.logError(opSearchKeywords, reasonQueryFailed, err, zap.String("query", query))
		return nil, internalError(opSearchKeywords, reasonQueryFailed, "Error searching keywords", err)
	}
	return keywords, nil
}

// ReadKeywords parses a vocabulary listing with one keyword per line. Blank lines and lines
// starting with '#' are skipped.
func ReadKeywords(reader io.Reader) ([]string, error) {
	keywords := []string{}
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return keywords, nil
}

// ImportKeywords adds the keywords to the vocabulary and returns how many were new. Entries
// already present are left untouched.
func (s *Service) ImportKeywords(ctx context.Context, keywords []string) (int, error) {
	if err := s.ready(opImportKeywords); err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(keywords))
	entries := make([]Keyword, 0, len(keywords))
	for _, keyword := range keywords {
		trimmed := strings.TrimSpace(keyword)
		if trimmed == "" {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		entries = append(entries, Keyword{KwText: trimmed})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&entries, keywordImportBatch)
	if result.Error != nil {
		s.logError(opImportKeywords, reasonRecordUpsert, result.Error, zap.Int("keywords", len(entries)))
		return 0, internalError(opImportKeywords, reasonRecordUpsert, "Error importing keywords", result.Error)
	}
	return int(result.RowsAffected), nil
}
