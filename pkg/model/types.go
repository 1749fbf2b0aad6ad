package model

import "strings"

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// DateLayout is the bucket key layout for all per-day aggregates.
const DateLayout = "2006-01-02"

// UnknownDate buckets events whose source row carried no usable
// timestamp. It sorts after every real date.
const UnknownDate = "unknown"

// Change classifies how a source file differs from its cached record.
type Change string

const (
	ChangeUnchanged Change = "unchanged"
	ChangeAppended  Change = "appended"
	ChangeRewritten Change = "rewritten"
	ChangeNew       Change = "new"
	ChangeDeleted   Change = "deleted"
)

// Role identifies who produced an event.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FileCategory buckets file paths touched by tool calls into broad kinds.
type FileCategory string

const (
	CategoryCode   FileCategory = "code"
	CategoryData   FileCategory = "data"
	CategoryDocs   FileCategory = "docs"
	CategoryMedia  FileCategory = "media"
	CategoryConfig FileCategory = "config"
	CategoryOther  FileCategory = "other"
)

// CategoryForExtension maps a file extension (without the dot) to its category.
func CategoryForExtension(ext string) FileCategory {
	switch strings.ToLower(ext) {
	case "rs", "py", "js", "ts", "tsx", "jsx", "java", "cpp", "c", "h", "hpp",
		"cs", "go", "php", "rb", "swift", "kt", "scala", "clj", "hs", "ml",
		"fs", "elm", "dart", "lua", "r", "jl", "nim", "zig", "v", "odin":
		return CategoryCode
	case "json", "xml", "yaml", "yml", "toml", "ini", "csv", "tsv", "sql",
		"db", "sqlite", "sqlite3":
		return CategoryData
	case "md", "txt", "rst", "adoc", "tex", "rtf", "doc", "docx", "pdf",
		"html", "htm":
		return CategoryDocs
	case "png", "jpg", "jpeg", "gif", "bmp", "svg", "ico", "webp", "tiff",
		"mp3", "wav", "mp4", "avi", "mkv", "mov", "wmv", "flv", "webm":
		return CategoryMedia
	case "config", "conf", "cfg", "env", "properties", "plist", "reg",
		"desktop", "service":
		return CategoryConfig
	default:
		return CategoryOther
	}
}
