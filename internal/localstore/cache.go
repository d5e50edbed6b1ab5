package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/octobees/contact-enricher/internal/cache"
	"github.com/octobees/contact-enricher/internal/entity"
)

// CacheStore implements cache.Store on SQLite.
type CacheStore struct {
	db *gorm.DB
}

// NewCacheStore wraps db.
func NewCacheStore(db *gorm.DB) *CacheStore {
	return &CacheStore{db: db}
}

var _ cache.Store = (*CacheStore)(nil)

// matchRank orders joined fingerprints from the most to the least specific.
const matchRank = `CASE f.type
	WHEN 'exact' THEN 0
	WHEN 'name_domain' THEN 1
	WHEN 'name_email_domain' THEN 2
	WHEN 'name_hash' THEN 3
	WHEN 'initials' THEN 4
	ELSE 5 END`

type matchedEntryRow struct {
	cacheEntryRow `gorm:"embedded"`
	MatchedBy     string `gorm:"column:matched_by"`
}

func (s *CacheStore) FindUserEntry(ctx context.Context, userID string, fingerprints []string) (entity.CacheEntry, bool, error) {
	if len(fingerprints) == 0 {
		return entity.CacheEntry{}, false, nil
	}
	var row matchedEntryRow
	err := s.db.WithContext(ctx).
		Table("global_contact_cache AS g").
		Select("g.*, f.type AS matched_by").
		Joins("JOIN contact_fingerprints f ON f.cache_entry_id = g.id").
		Joins("JOIN user_contact_history h ON h.cache_entry_id = g.id AND h.user_id = ?", userID).
		Where("f.value IN ?", fingerprints).
		Order(matchRank + ", h.last_accessed_at DESC").
		Take(&row).Error
	return entryOrMiss(row, err, "find user cache entry")
}

func (s *CacheStore) FindGlobalEntry(ctx context.Context, fingerprints []string) (entity.CacheEntry, bool, error) {
	if len(fingerprints) == 0 {
		return entity.CacheEntry{}, false, nil
	}
	var row matchedEntryRow
	err := s.db.WithContext(ctx).
		Table("global_contact_cache AS g").
		Select("g.*, f.type AS matched_by").
		Joins("JOIN contact_fingerprints f ON f.cache_entry_id = g.id").
		Where("f.value IN ?", fingerprints).
		Order(matchRank + ", g.confidence DESC, g.created_at DESC").
		Take(&row).Error
	return entryOrMiss(row, err, "find global cache entry")
}

func entryOrMiss(row matchedEntryRow, err error, op string) (entity.CacheEntry, bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.CacheEntry{}, false, nil
	}
	if err != nil {
		return entity.CacheEntry{}, false, fmt.Errorf("%s: %w", op, err)
	}
	entry, err := row.toEntity()
	if err != nil {
		return entity.CacheEntry{}, false, err
	}
	entry.MatchedBy = entity.FingerprintType(row.MatchedBy)
	return entry, true, nil
}

func (s *CacheStore) InsertEntry(ctx context.Context, entry entity.CacheEntry, fingerprints []entity.Fingerprint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := cacheEntryFromEntity(entry)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert cache entry: %w", err)
		}
		if len(fingerprints) == 0 {
			return nil
		}
		fps := make([]fingerprintRow, 0, len(fingerprints))
		for _, fp := range fingerprints {
			fps = append(fps, fingerprintRow{
				Value:        fp.Value,
				Type:         string(fp.Type),
				CacheEntryID: row.ID,
				CreatedAt:    row.CreatedAt,
			})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fps).Error; err != nil {
			return fmt.Errorf("insert fingerprints: %w", err)
		}
		return nil
	})
}

func (s *CacheStore) RecordReuse(ctx context.Context, entryID uuid.UUID, costSaved float64, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&cacheEntryRow{}).
		Where("id = ?", entryID.String()).
		Updates(map[string]any{
			"times_reused":     gorm.Expr("times_reused + 1"),
			"total_cost_saved": gorm.Expr("total_cost_saved + ?", costSaved),
			"last_accessed_at": at.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("record cache reuse: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CacheStore) UpsertUserHistory(ctx context.Context, userID string, entryID uuid.UUID, credits int, at time.Time) error {
	at = at.UTC()
	row := historyRow{
		UserID:          userID,
		CacheEntryID:    entryID.String(),
		CreditsCharged:  credits,
		TimesAccessed:   1,
		FirstEnrichedAt: at,
		LastAccessedAt:  at,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "cache_entry_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"credits_charged":  gorm.Expr("credits_charged + ?", credits),
			"times_accessed":   gorm.Expr("times_accessed + 1"),
			"last_accessed_at": at,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert user history: %w", err)
	}
	return nil
}

func (s *CacheStore) IncrementPerformance(ctx context.Context, day time.Time, d entity.CacheMetricDelta) error {
	row := performanceRow{
		Day:          day.UTC().Format(time.DateOnly),
		UserHits:     d.UserHits,
		GlobalHits:   d.GlobalHits,
		Misses:       d.Misses,
		APICostSaved: d.APICostSaved,
		APICostSpent: d.APICostSpent,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{
			"user_hits":      gorm.Expr("user_hits + ?", d.UserHits),
			"global_hits":    gorm.Expr("global_hits + ?", d.GlobalHits),
			"misses":         gorm.Expr("misses + ?", d.Misses),
			"api_cost_saved": gorm.Expr("api_cost_saved + ?", d.APICostSaved),
			"api_cost_spent": gorm.Expr("api_cost_spent + ?", d.APICostSpent),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("increment cache performance: %w", err)
	}
	return nil
}

// Performance returns roll-up rows between from and to, newest first.
func (s *CacheStore) Performance(ctx context.Context, from, to time.Time) ([]entity.CachePerformance, error) {
	var rows []performanceRow
	err := s.db.WithContext(ctx).
		Where("day BETWEEN ? AND ?", from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly)).
		Order("day DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query cache performance: %w", err)
	}
	out := make([]entity.CachePerformance, 0, len(rows))
	for _, r := range rows {
		day, err := time.Parse(time.DateOnly, r.Day)
		if err != nil {
			return nil, fmt.Errorf("parse performance day %q: %w", r.Day, err)
		}
		out = append(out, entity.CachePerformance{
			Day:          day,
			UserHits:     r.UserHits,
			GlobalHits:   r.GlobalHits,
			Misses:       r.Misses,
			APICostSaved: r.APICostSaved,
			APICostSpent: r.APICostSpent,
		})
	}
	return out, nil
}

func cacheEntryFromEntity(e entity.CacheEntry) cacheEntryRow {
	return cacheEntryRow{
		ID:             e.ID.String(),
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		Company:        e.Company,
		Domain:         e.Domain,
		Email:          e.Email,
		Phone:          e.Phone,
		EmailVerified:  e.EmailVerified,
		EmailScore:     e.EmailScore,
		PhoneVerified:  e.PhoneVerified,
		PhoneScore:     e.PhoneScore,
		PhoneType:      e.PhoneType,
		PhoneCountry:   e.PhoneCountry,
		IsDisposable:   e.IsDisposable,
		IsRoleBased:    e.IsRoleBased,
		IsCatchAll:     e.IsCatchAll,
		Provider:       e.Provider,
		Confidence:     e.Confidence,
		OriginalCost:   e.OriginalCost,
		TimesReused:    e.TimesReused,
		TotalCostSaved: e.TotalCostSaved,
		CreatedAt:      e.CreatedAt.UTC(),
		LastAccessedAt: e.LastAccessedAt.UTC(),
	}
}

func (r cacheEntryRow) toEntity() (entity.CacheEntry, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return entity.CacheEntry{}, fmt.Errorf("parse cache entry id: %w", err)
	}
	return entity.CacheEntry{
		ID:             id,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Company:        r.Company,
		Domain:         r.Domain,
		Email:          r.Email,
		Phone:          r.Phone,
		EmailVerified:  r.EmailVerified,
		EmailScore:     r.EmailScore,
		PhoneVerified:  r.PhoneVerified,
		PhoneScore:     r.PhoneScore,
		PhoneType:      r.PhoneType,
		PhoneCountry:   r.PhoneCountry,
		IsDisposable:   r.IsDisposable,
		IsRoleBased:    r.IsRoleBased,
		IsCatchAll:     r.IsCatchAll,
		Provider:       r.Provider,
		Confidence:     r.Confidence,
		OriginalCost:   r.OriginalCost,
		TimesReused:    r.TimesReused,
		TotalCostSaved: r.TotalCostSaved,
		CreatedAt:      r.CreatedAt,
		LastAccessedAt: r.LastAccessedAt,
	}, nil
}
