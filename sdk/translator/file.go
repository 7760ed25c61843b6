package translator

import (
	"context"
	"path/filepath"
	"strings"
)

// CategoryService classifies file names and supplies naming fields per category.
type CategoryService interface {
	GuessCategory(name string) (categoryID string, ok bool)
	NamingFields(categoryID string) map[string]string
}

// NamingService renders a file name from a template and a field map.
type NamingService interface {
	Render(template string, fields map[string]string) (string, error)
	RequiredFields(template string) []string
}

// MissingFieldPrefix prefixes the placeholder used for naming fields that
// neither the context nor the category service could supply.
const MissingFieldPrefix = "Unknown"

// FileResult describes a translated file name.
type FileResult struct {
	OriginalName   string            `json:"original_name"`
	Extension      string            `json:"extension"`
	TranslatedName string            `json:"translated_name"`
	FinalName      string            `json:"final_name"`
	Strategy       string            `json:"strategy"`
	Fallback       bool              `json:"fallback"`
	CacheHit       bool              `json:"cache_hit"`
	Fields         map[string]string `json:"fields"`
}

// TranslateFile translates the base name of path and renders the final name.
func (m *Manager) TranslateFile(ctx context.Context, path, strategyName string, tctx Context) (FileResult, error) {
	fields := map[string]string{
		"file_path": path,
		"directory": filepath.Dir(path),
	}
	return m.translateName(ctx, filepath.Base(path), strategyName, tctx, fields)
}

// PreviewFilename runs the file-name pipeline on a bare name.
func (m *Manager) PreviewFilename(ctx context.Context, name, strategyName string, tctx Context) (FileResult, error) {
	return m.translateName(ctx, name, strategyName, tctx, map[string]string{})
}

func (m *Manager) translateName(ctx context.Context, fileName, strategyName string, tctx Context, fields map[string]string) (FileResult, error) {
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)

	fields["file_name"] = fileName
	fields["original_name"] = base
	fields["extension"] = ext

	// Path-specific fields stay out of the translation context so that equal
	// names in different directories share a cache entry.
	nctx := tctx.Clone()
	nctx["original_name"] = base
	nctx["extension"] = ext
	if m.categories != nil {
		if id, ok := m.categories.GuessCategory(base); ok {
			nctx[KeyCategoryID] = id
			fields[KeyCategoryID] = id
			for k, v := range m.categories.NamingFields(id) {
				nctx[k] = v
				fields[k] = v
			}
		}
	}

	res := FileResult{OriginalName: base, Extension: ext, Fields: fields}
	out, err := m.TranslateDetailed(ctx, base, strategyName, nctx)
	res.Strategy = out.Strategy
	if err != nil {
		res.TranslatedName = base
		res.FinalName = fileName
		return res, err
	}
	res.TranslatedName = out.Text
	res.Fallback = out.Fallback
	res.CacheHit = out.CacheHit
	fields["translated_name"] = out.Text

	if m.naming == nil || m.namingTemplate == "" {
		res.FinalName = out.Text + ext
		return res, nil
	}
	for _, f := range m.naming.RequiredFields(m.namingTemplate) {
		if _, ok := fields[f]; !ok {
			fields[f] = MissingFieldPrefix + f
		}
	}
	final, err := m.naming.Render(m.namingTemplate, fields)
	if err != nil {
		res.FinalName = out.Text + ext
		return res, err
	}
	res.FinalName = final
	return res, nil
}
