// Пакет service — бизнес-логика media-service.
// ValidationService — движок валидации загружаемых файлов: allow-list MIME
// по категориям, лимит размера, сигнатуры форматов, метаданные контента.
// Движок не имеет побочных эффектов: не обращается ни к хранилищу, ни к БД.
package service

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	// Регистрация декодеров для image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/bigkaa/gomediastore/internal/config"
	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// contentTypeByExtension — MIME-типы по расширению имени файла.
// Используется presigned-потоком (содержимого ещё нет) и как последний
// fallback при определении типа по содержимому.
var contentTypeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
}

// contentTypeAliases — нестандартные имена MIME-типов, встречающиеся
// у клиентов и в конфигурации. Приводятся к каноническим.
var contentTypeAliases = map[string]string{
	"image/jpg":     "image/jpeg",
	"video/avi":     "video/x-msvideo",
	"video/msvideo": "video/x-msvideo",
	"video/mov":     "video/quicktime",
	"video/wmv":     "video/x-ms-wmv",
}

// asfGUID — сигнатура контейнера ASF (WMV).
var asfGUID = []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11, 0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C}

// ValidationResult — принятый дескриптор файла после проверки содержимого.
type ValidationResult struct {
	// ContentType — MIME-тип, определённый по содержимому
	ContentType string
	// Size — размер содержимого в байтах
	Size int64
	// Width, Height — размеры изображения в пикселях (категория image)
	Width  *int
	Height *int
	// DurationSeconds — длительность видео (только контейнеры MP4/MOV)
	DurationSeconds *float64
}

// ValidationService — движок валидации загружаемых файлов.
type ValidationService struct {
	maxFileSize       int64
	maxImageDimension int
	allowedTypes      map[model.FileCategory]map[string]bool
	logger            *slog.Logger
}

// NewValidationService создаёт движок валидации из конфигурации.
// Allow-list нормализуется при построении, поэтому в MS_ALLOWED_VIDEO_TYPES
// допустимы и канонические имена, и алиасы вида video/avi.
func NewValidationService(cfg *config.Config, logger *slog.Logger) *ValidationService {
	return &ValidationService{
		maxFileSize:       cfg.MaxFileSize,
		maxImageDimension: cfg.MaxImageDimension,
		allowedTypes: map[model.FileCategory]map[string]bool{
			model.CategoryImage: toTypeSet(cfg.AllowedImageTypes),
			model.CategoryVideo: toTypeSet(cfg.AllowedVideoTypes),
		},
		logger: logger.With(slog.String("component", "validation_service")),
	}
}

// ValidateDeclared проверяет заявленный дескриптор без содержимого.
// Используется presigned-потоком: MIME выводится из расширения имени файла
// и сверяется с allow-list категории. Возвращает выведенный MIME-тип.
func (s *ValidationService) ValidateDeclared(filename string, category model.FileCategory) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	ct, ok := contentTypeByExtension[ext]
	if !ok {
		if category == model.CategoryOther {
			return "application/octet-stream", nil
		}
		return "", fmt.Errorf("%w: расширение %q не поддерживается для категории %s", ErrValidation, ext, category)
	}

	if err := s.checkAllowed(ct, category); err != nil {
		return "", err
	}
	return ct, nil
}

// ValidateContent проверяет содержимое файла при прямой загрузке.
// Порядок: лимит размера, тип по сигнатуре содержимого, allow-list категории,
// метаданные. Расхождение расширения и сигнатуры — отказ, а не тихое
// исправление типа.
func (s *ValidationService) ValidateContent(data []byte, filename string, category model.FileCategory) (*ValidationResult, error) {
	// 1. Лимит размера
	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d байт при лимите %d байт", ErrFileTooLarge, len(data), s.maxFileSize)
	}

	// 2. Тип по содержимому
	sig := sniffSignature(data)
	extType := contentTypeByExtension[strings.ToLower(filepath.Ext(filename))]
	if sig != "" && extType != "" && sig != extType {
		return nil, fmt.Errorf("%w: расширение файла заявляет %s, сигнатура содержимого — %s",
			ErrValidation, extType, sig)
	}

	detected := sig
	if detected == "" {
		detected = normalizeContentType(http.DetectContentType(data))
	}
	if detected == "application/octet-stream" && extType != "" {
		detected = extType
	}

	// 3. Allow-list категории
	if err := s.checkAllowed(detected, category); err != nil {
		return nil, err
	}

	result := &ValidationResult{
		ContentType: detected,
		Size:        int64(len(data)),
	}

	// 4. Метаданные. Извлечение best-effort: сбой декодирования не отклоняет
	// загрузку, превышение предела размеров изображения — отклоняет.
	switch category {
	case model.CategoryImage:
		imgCfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			s.logger.Debug("Не удалось определить размеры изображения",
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
			break
		}
		if imgCfg.Width > s.maxImageDimension || imgCfg.Height > s.maxImageDimension {
			return nil, fmt.Errorf("%w: размеры изображения %dx%d превышают предел %d пикселей",
				ErrValidation, imgCfg.Width, imgCfg.Height, s.maxImageDimension)
		}
		result.Width = &imgCfg.Width
		result.Height = &imgCfg.Height
	case model.CategoryVideo:
		if detected == "video/mp4" || detected == "video/quicktime" {
			if d := mp4Duration(data); d > 0 {
				result.DurationSeconds = &d
			}
		}
	}

	return result, nil
}

// checkAllowed сверяет MIME-тип с allow-list категории.
// Категория other не ограничена allow-list'ом.
func (s *ValidationService) checkAllowed(ct string, category model.FileCategory) error {
	allowed, ok := s.allowedTypes[category]
	if !ok {
		return nil
	}
	if !allowed[ct] {
		return fmt.Errorf("%w: MIME-тип %q не разрешён для категории %s", ErrValidation, ct, category)
	}
	return nil
}

// sniffSignature определяет MIME-тип по сигнатуре содержимого.
// Возвращает пустую строку, если сигнатура не распознана.
func sniffSignature(data []byte) string {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("AVI ")):
		return "video/x-msvideo"
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		// Брендом qt* подписывается QuickTime, остальное — семейство MP4
		if bytes.HasPrefix(data[8:12], []byte("qt")) {
			return "video/quicktime"
		}
		return "video/mp4"
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		// Общий EBML-заголовок WebM и Matroska
		return "video/webm"
	case len(data) >= 16 && bytes.Equal(data[:16], asfGUID):
		return "video/x-ms-wmv"
	}
	return ""
}

// normalizeContentType приводит MIME-тип к каноническому виду:
// нижний регистр, без параметров (charset), алиасы заменены.
func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if canonical, ok := contentTypeAliases[ct]; ok {
		return canonical
	}
	return ct
}

// toTypeSet строит множество нормализованных MIME-типов.
func toTypeSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[normalizeContentType(t)] = true
	}
	return set
}

// mp4Duration извлекает длительность из контейнера MP4/MOV: box mvhd
// внутри moov на верхнем уровне. Возвращает 0, если box не найден,
// файл обрезан или использует 64-битные размеры box'ов.
func mp4Duration(data []byte) float64 {
	for off := 0; off+8 <= len(data); {
		size := int(binary.BigEndian.Uint32(data[off : off+4]))
		if size < 8 {
			return 0
		}
		if bytes.Equal(data[off+4:off+8], []byte("moov")) {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			return mvhdDuration(data[off+8 : end])
		}
		off += size
	}
	return 0
}

// mvhdDuration разбирает box mvhd: после version и flags идут creation_time,
// modification_time, timescale и duration (32-битные в версии 0, время и
// длительность 64-битные в версии 1).
func mvhdDuration(moov []byte) float64 {
	for off := 0; off+8 <= len(moov); {
		size := int(binary.BigEndian.Uint32(moov[off : off+4]))
		if size < 8 {
			return 0
		}
		if !bytes.Equal(moov[off+4:off+8], []byte("mvhd")) {
			off += size
			continue
		}

		body := moov[off+8:]
		if len(body) < 1 {
			return 0
		}
		if body[0] == 1 {
			if len(body) < 32 {
				return 0
			}
			timescale := binary.BigEndian.Uint32(body[20:24])
			duration := binary.BigEndian.Uint64(body[24:32])
			if timescale == 0 {
				return 0
			}
			return float64(duration) / float64(timescale)
		}
		if len(body) < 20 {
			return 0
		}
		timescale := binary.BigEndian.Uint32(body[12:16])
		duration := binary.BigEndian.Uint32(body[16:20])
		if timescale == 0 {
			return 0
		}
		return float64(duration) / float64(timescale)
	}
	return 0
}
