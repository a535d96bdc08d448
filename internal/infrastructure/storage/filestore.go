// Package storage guarda los XML timbrados y recibidos en disco.
package storage

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
)

// FileStore organiza los XML por {raíz}/{aaaa}/{mm}/{issued|received}/{UUID}.xml, con año y mes de emisión.
type FileStore struct {
	fs   afero.Fs
	root string
}

// NewFileStore crea el almacén sobre el sistema de archivos dado.
func NewFileStore(fs afero.Fs, root string) *FileStore {
	if root == "" {
		root = "storage/cfdi"
	}
	return &FileStore{fs: fs, root: root}
}

// PathFor ruta relativa (a la raíz) del XML de un comprobante.
func (s *FileStore) PathFor(doc *entity.FiscalDocument) (string, error) {
	if doc == nil || doc.UUID == "" {
		return "", fmt.Errorf("storage: el comprobante no tiene folio fiscal: %w", domain.ErrInvalidInput)
	}
	dir := doc.Direction
	if dir == "" {
		dir = entity.DirectionIssued
	}
	// Año y mes de emisión (Fecha del comprobante), no de timbrado.
	when := doc.IssuedAt
	return path.Join(when.Format("2006"), when.Format("01"), string(dir), strings.ToUpper(doc.UUID)+".xml"), nil
}

// Save escribe el XML y devuelve la ruta relativa que se persiste en XMLPath.
func (s *FileStore) Save(doc *entity.FiscalDocument, payload []byte) (string, error) {
	rel, err := s.PathFor(doc)
	if err != nil {
		return "", err
	}
	if err := s.Put(rel, payload); err != nil {
		return "", err
	}
	return rel, nil
}

// Put escribe en una ruta relativa ya conocida (p. ej. para devolver un XML previo).
func (s *FileStore) Put(rel string, payload []byte) error {
	clean := path.Clean("/" + rel)[1:]
	full := path.Join(s.root, clean)
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage: crear directorio: %w", err)
	}
	if err := afero.WriteFile(s.fs, full, payload, 0o644); err != nil {
		return fmt.Errorf("storage: escribir %s: %w", rel, err)
	}
	return nil
}

// Load lee un XML por su ruta relativa.
func (s *FileStore) Load(rel string) ([]byte, error) {
	clean := path.Clean("/" + rel)[1:]
	b, err := afero.ReadFile(s.fs, path.Join(s.root, clean))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: %s: %w", rel, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: leer %s: %w", rel, err)
	}
	return b, nil
}

// Remove borra el XML; no falla si ya no existe.
func (s *FileStore) Remove(rel string) error {
	err := s.fs.Remove(path.Join(s.root, rel))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: borrar %s: %w", rel, err)
	}
	return nil
}

// ArchiveMonth empaqueta en un ZIP en memoria los XML de un mes.
// direction vacío incluye emitidos y recibidos; las entradas conservan la subcarpeta.
func (s *FileStore) ArchiveMonth(year, month int, direction entity.Direction) ([]byte, int, error) {
	if month < 1 || month > 12 {
		return nil, 0, fmt.Errorf("storage: mes %d fuera de rango: %w", month, domain.ErrInvalidInput)
	}
	base := path.Join(s.root, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month))
	dirs := []entity.Direction{entity.DirectionIssued, entity.DirectionReceived}
	if direction != "" {
		dirs = []entity.Direction{direction}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	count := 0
	for _, dir := range dirs {
		names, err := s.listXML(path.Join(base, string(dir)))
		if err != nil {
			return nil, 0, err
		}
		for _, name := range names {
			data, err := afero.ReadFile(s.fs, path.Join(base, string(dir), name))
			if err != nil {
				return nil, 0, fmt.Errorf("storage: leer %s: %w", name, err)
			}
			fw, err := zw.Create(path.Join(string(dir), name))
			if err != nil {
				return nil, 0, fmt.Errorf("zip: crear entrada %s: %w", name, err)
			}
			if _, err := fw.Write(data); err != nil {
				return nil, 0, fmt.Errorf("zip: escribir %s: %w", name, err)
			}
			count++
		}
	}
	if err := zw.Close(); err != nil {
		return nil, 0, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), count, nil
}

func (s *FileStore) listXML(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: listar %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".xml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
