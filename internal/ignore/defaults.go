package ignore

// TransientPatterns match temporary, partial and lock files that editors,
// browsers and Office write while a file is still in flux. Watch events for
// them never reach a debounce window. Patterns are doublestar globs matched
// against the lowercased base name.
var TransientPatterns = []string{
	"*.tmp*",
	"*.partial*",
	"*.crdownload*",
	"*.part*",
	"*~$*",
	"*.swp*",
	"*.lock*",
	"*desktop.ini*",
	"*thumbs.db*",
}

// ScanPatterns match entries the scanner skips and the reconciler does not
// count: hidden entries and Windows system folders.
var ScanPatterns = []string{
	".*",
	"$recycle.bin",
	"system volume information",
	"thumbs.db",
}

// RulesFileName is an optional gitignore-syntax file at a scan root with
// extra exclusions for that root.
const RulesFileName = ".recorderignore"
