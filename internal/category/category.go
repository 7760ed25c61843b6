// Package category guesses a sound-library category from a file name and
// supplies the per-category fields used when naming translated files.
package category

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// OtherID is the category reported when nothing matches.
const OtherID = "Other"

// Match weights.
const (
	scoreSynonym     = 2
	scoreName        = 3
	scoreSubcategory = 3
	scoreID          = 4
)

// Category is one entry of the category list.
type Category struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	NameZh        string   `yaml:"name-zh" json:"name_zh"`
	Subcategory   string   `yaml:"subcategory" json:"subcategory"`
	SubcategoryZh string   `yaml:"subcategory-zh" json:"subcategory_zh"`
	Synonyms      []string `yaml:"synonyms" json:"synonyms"`
	SynonymsZh    []string `yaml:"synonyms-zh" json:"synonyms_zh"`
}

// Fields returns the naming fields of c.
func (c Category) Fields() map[string]string {
	return map[string]string{
		"category":       c.Name,
		"category_zh":    c.NameZh,
		"subcategory":    c.Subcategory,
		"subcategory_zh": c.SubcategoryZh,
		"cat_id":         c.ID,
	}
}

// Service is a keyword-scoring CategoryService.
type Service struct {
	mu         sync.RWMutex
	categories map[string]Category
	order      []string
}

// NewService builds a service over the given categories.
func NewService(categories []Category) *Service {
	s := &Service{categories: make(map[string]Category)}
	s.Replace(categories)
	return s
}

// Replace swaps the category list.
func (s *Service) Replace(categories []Category) {
	m := make(map[string]Category, len(categories))
	order := make([]string, 0, len(categories))
	for _, c := range categories {
		if c.ID == "" {
			continue
		}
		if _, dup := m[c.ID]; !dup {
			order = append(order, c.ID)
		}
		m[c.ID] = c
	}
	s.mu.Lock()
	s.categories = m
	s.order = order
	s.mu.Unlock()
}

// Len returns the number of categories.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories)
}

// Get returns the category with id.
func (s *Service) Get(id string) (Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	return c, ok
}

// GuessCategory scores every category against the file name and returns the
// best one. Ties keep the category listed first.
func (s *Service) GuessCategory(name string) (string, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	text := strings.Join(strings.Split(strings.ToLower(stem), "_"), " ")

	s.mu.RLock()
	defer s.mu.RUnlock()

	best, bestScore := "", 0
	for _, id := range s.order {
		if score := scoreCategory(s.categories[id], text); score > bestScore {
			best, bestScore = id, score
		}
	}
	if bestScore == 0 {
		return "", false
	}
	return best, true
}

func scoreCategory(c Category, text string) int {
	score := 0
	for _, syn := range c.Synonyms {
		if syn = strings.ToLower(strings.TrimSpace(syn)); syn != "" && strings.Contains(text, syn) {
			score += scoreSynonym
		}
	}
	for _, syn := range c.SynonymsZh {
		if syn != "" && strings.Contains(text, syn) {
			score += scoreSynonym
		}
	}
	if n := strings.ToLower(c.Name); n != "" && strings.Contains(text, n) {
		score += scoreName
	}
	if n := strings.ToLower(c.Subcategory); n != "" && strings.Contains(text, n) {
		score += scoreSubcategory
	}
	if strings.Contains(text, strings.ToLower(c.ID)) {
		score += scoreID
	}
	return score
}

// NamingFields returns the fields of the category, or those of the Other
// category for unknown ids.
func (s *Service) NamingFields(id string) map[string]string {
	if c, ok := s.Get(id); ok {
		return c.Fields()
	}
	return Other().Fields()
}

// Other is the catch-all category.
func Other() Category {
	return Category{ID: OtherID, Name: "Other", NameZh: "其他", Subcategory: "Manual", SubcategoryZh: "待分类"}
}

// CSV column headers of a category list file.
const (
	colID          = "CatID"
	colName        = "Category"
	colNameZh      = "Category_zh"
	colSub         = "SubCategory"
	colSubZh       = "SubCategory_zh"
	colSynonyms    = "Synonyms - Comma Separated"
	colSynonymsZh  = "Synonyms_zh"
	synonymSepZh   = "、"
	synonymSepList = ","
)

// LoadCSV reads a category list with a CatID header row.
func LoadCSV(path string) ([]Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if errClose := f.Close(); errClose != nil {
			log.Errorf("category: close %s: %v", path, errClose)
		}
	}()
	return ParseCSV(f)
}

// ParseCSV parses category rows from r.
func ParseCSV(r io.Reader) ([]Category, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("category: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))] = i
	}
	if _, ok := idx[colID]; !ok {
		return nil, fmt.Errorf("category: missing %s column", colID)
	}
	col := func(row []string, name string) string {
		if i, ok := idx[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var out []Category
	for {
		row, errRow := reader.Read()
		if errors.Is(errRow, io.EOF) {
			break
		}
		if errRow != nil {
			return nil, fmt.Errorf("category: read row: %w", errRow)
		}
		id := col(row, colID)
		if id == "" {
			continue
		}
		out = append(out, Category{
			ID:            id,
			Name:          col(row, colName),
			NameZh:        col(row, colNameZh),
			Subcategory:   col(row, colSub),
			SubcategoryZh: col(row, colSubZh),
			Synonyms:      splitList(col(row, colSynonyms), synonymSepList),
			SynonymsZh:    splitList(col(row, colSynonymsZh), synonymSepZh),
		})
	}
	return out, nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IDs returns the category ids in sorted order.
func (s *Service) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.categories))
	for id := range s.categories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
