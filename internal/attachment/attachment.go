package attachment

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
)

const mb = 1024 * 1024

var (
	ErrEmpty        = errors.New("файл не может быть пустым")
	ErrTooLarge     = errors.New("размер файла превышает лимит")
	ErrExtension    = errors.New("неподдерживаемый формат файла")
	ErrTypeMismatch = errors.New("содержимое файла не соответствует расширению")
	ErrTooMany      = errors.New("слишком много файлов")
)

// Policy правила приёма вложений для одного канала.
type Policy struct {
	Extensions map[string]struct{}
	MaxBytes   int64
	// MaxFiles 0 означает без ограничения.
	MaxFiles int
}

func exts(list ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, e := range list {
		m[e] = struct{}{}
	}
	return m
}

// Политики каналов приёма.
var (
	AdminPolicy = Policy{
		Extensions: exts("jpg", "jpeg", "png", "gif", "webp", "bmp", "tiff", "mp4", "webm", "ogg",
			"avi", "mov", "wmv", "flv", "mkv", "pdf", "doc", "docx"),
		MaxBytes: 100 * mb,
	}
	PublicPolicy = Policy{
		Extensions: exts("jpeg", "jpg", "png", "gif", "pdf", "doc", "docx", "txt", "csv", "xlsx"),
		MaxBytes:   10 * mb,
		MaxFiles:   10,
	}
	ChatbotPolicy = Policy{
		Extensions: exts("jpeg", "png", "jpg", "gif", "mp4", "avi", "mov", "wmv"),
		MaxBytes:   20 * mb,
	}
)

// текстовые форматы без магических байтов.
var plainText = exts("txt", "csv")

// эквивалентные расширения после распознавания.
var aliases = map[string]string{
	"jpeg": "jpg",
	"tif":  "tiff",
}

// офисные форматы OOXML распознаются как zip.
var zipContainers = exts("docx", "xlsx")

// File результат проверки вложения.
type File struct {
	Name        string
	Ext         string
	ContentType string
	Size        int64
}

// Allowed отсортированный список расширений для сообщений об ошибке.
func (p Policy) Allowed() []string {
	out := make([]string, 0, len(p.Extensions))
	for e := range p.Extensions {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// CheckCount проверяет число файлов в запросе.
func (p Policy) CheckCount(n int) error {
	if p.MaxFiles > 0 && n > p.MaxFiles {
		return fmt.Errorf("%w: максимум %d", ErrTooMany, p.MaxFiles)
	}
	return nil
}

// Inspect проверяет расширение, размер и магические байты. Позиция r возвращается в начало.
func (p Policy) Inspect(name string, size int64, r io.ReadSeeker) (*File, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return nil, fmt.Errorf("%w: %d МБ", ErrTooLarge, p.MaxBytes/mb)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if _, ok := p.Extensions[ext]; !ok {
		return nil, fmt.Errorf("%w. Разрешены: %s", ErrExtension, strings.Join(p.Allowed(), ", "))
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("не удалось прочитать файл: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("не удалось сбросить позицию файла: %w", err)
	}

	contentType, err := sniff(ext, head[:n])
	if err != nil {
		return nil, err
	}

	return &File{Name: filepath.Base(name), Ext: ext, ContentType: contentType, Size: size}, nil
}

func sniff(ext string, head []byte) (string, error) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		if _, ok := plainText[ext]; ok {
			return byExtension(ext), nil
		}
		return "", fmt.Errorf("%w: не удалось определить тип", ErrTypeMismatch)
	}

	if normalize(kind.Extension) == normalize(ext) {
		return kind.MIME.Value, nil
	}
	if _, ok := zipContainers[ext]; ok && kind.Extension == "zip" {
		return byExtension(ext), nil
	}
	return "", fmt.Errorf("%w (%s, ожидалось %s)", ErrTypeMismatch, kind.Extension, ext)
}

func normalize(ext string) string {
	if a, ok := aliases[ext]; ok {
		return a
	}
	return ext
}

func byExtension(ext string) string {
	if t := mime.TypeByExtension("." + ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
