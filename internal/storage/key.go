// key.go — генерация ключей объектов в хранилище.
//
// Раскладка ключей:
//
//	athletes/{athlete_id}/{YYYY/MM}/{uuid}{.ext}  — файлы, привязанные к спортсмену
//	general/{YYYY/MM}/{uuid}{.ext}                — файлы без привязки
//
// Имя объекта — всегда новый UUID: исходное имя файла хранится только
// в метаданных и на ключ не влияет, коллизии ключей исключены.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxExtLen — максимальная длина расширения, включаемого в ключ.
const maxExtLen = 10

// extensionByContentType — расширение по MIME-типу, когда имя файла
// расширения не содержит.
var extensionByContentType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/x-msvideo": ".avi",
	"video/quicktime": ".mov",
	"video/x-ms-wmv":  ".wmv",
	"video/webm":      ".webm",
}

// BuildKey формирует ключ объекта для нового файла.
// Расширение берётся из исходного имени файла, а при его отсутствии
// выводится из MIME-типа.
func BuildKey(athleteID *string, filename, contentType string, now time.Time) string {
	ext := safeExt(filename)
	if ext == "" {
		ext = extensionByContentType[contentType]
	}

	yearMonth := now.Format("2006/01")
	id := uuid.New().String()

	if athleteID != nil && *athleteID != "" {
		return fmt.Sprintf("athletes/%s/%s/%s%s", *athleteID, yearMonth, id, ext)
	}
	return fmt.Sprintf("general/%s/%s%s", yearMonth, id, ext)
}

// safeExt возвращает расширение имени файла в нижнем регистре.
// Слишком длинные и содержащие посторонние символы расширения отбрасываются.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
