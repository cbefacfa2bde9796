// Package ledger records recipe completions: which recipe was cooked, what
// was deducted from the pantry and how trustworthy the deduction was.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("completion not found")

// Completion is one recipe-completion event.
type Completion struct {
	ID            string           `gorm:"type:char(36);primaryKey" json:"id"`
	RecipeID      string           `gorm:"type:varchar(255);index;not null" json:"recipe_id"`
	RecipeTitle   string           `gorm:"type:varchar(255)" json:"recipe_title"`
	LinesTotal    int              `json:"lines_total"`
	LinesExact    int              `json:"lines_exact"`
	LinesPartial  int              `json:"lines_partial"`
	LinesMissing  int              `json:"lines_missing"`
	LinesSkipped  int              `json:"lines_skipped"`
	MinConfidence *float64         `json:"min_confidence,omitempty"`
	Items         []CompletionItem `gorm:"foreignKey:CompletionID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
}

// CompletionItem is the deduction applied to one pantry item.
type CompletionItem struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	CompletionID string  `gorm:"type:char(36);index;not null" json:"-"`
	ItemID       string  `gorm:"type:varchar(255);not null" json:"item_id"`
	Name         string  `gorm:"type:varchar(255)" json:"name"`
	Unit         string  `gorm:"type:varchar(50)" json:"unit"`
	Consumed     float64 `json:"consumed"`
	Remaining    float64 `json:"remaining"`
	Exhausted    bool    `json:"exhausted"`
}

type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path and migrates the schema. An
// empty path opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	// Each sqlite connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Completion{}, &CompletionItem{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores c with its items, assigning an id and timestamp when unset.
func (s *Store) Record(ctx context.Context, c *Completion) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Completion, error) {
	var c Completion
	err := s.db.WithContext(ctx).Preload("Items").First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("completion %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return &c, nil
}

// List returns the most recent completions first. A recipeID narrows the
// result to that recipe.
func (s *Store) List(ctx context.Context, recipeID string, limit int) ([]Completion, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Preload("Items").Order("created_at desc").Limit(limit)
	if recipeID != "" {
		q = q.Where("recipe_id = ?", recipeID)
	}

	var out []Completion
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return out, nil
}
