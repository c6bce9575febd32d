package ingestion

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codegraphhq/codegraph/internal/errors"
	"github.com/codegraphhq/codegraph/internal/logging"
)

// DiscoveredFile is one file emitted by the repository walk.
type DiscoveredFile struct {
	AbsPath  string
	RelPath  string
	Language string // file type key, e.g. "cpp", "python", "dockerfile"
}

// IgnoredDirs prunes directory subtrees during the walk. Entries containing
// a path separator are matched against the directory path relative to the
// repository root; the rest match the directory name (globs allowed).
var IgnoredDirs = []string{
	".git", ".hg", ".svn", ".idea", ".vscode",
	"__pycache__", "node_modules", "vendor",
	"build", "dist", "target", "out", "bin", "obj",
	"venv", ".venv", "env", ".env",
	"logs", "tmp", "temp", "coverage",
	".cache", ".pytest_cache", ".mypy_cache", ".tox",
	"site-packages", "*.egg-info", "docs/_build", "site",
	".serverless", ".terraform", "__pypackages__",
}

// IgnoredFiles filters individual files. Split into exact names and glob
// patterns at package init.
var IgnoredFiles = []string{
	"*.pyc", "*.pyo", "*.pyd", "*.so", "*.dll", "*.o", "*.a", "*.obj",
	"*.lib", "*.class", "*.jar", "*.war", "*.ear",
	"*.log", "*.swp", "*.swo",
	".DS_Store", "Thumbs.db", "desktop.ini",
	"package-lock.json", "yarn.lock", "poetry.lock", "Pipfile.lock",
	"Gemfile.lock", "composer.lock", "go.sum",
	"*.min.js", "*.min.css", "*.map", "*.lock",
	"*.bak", "*.tmp", "*.temp", "*~",
}

// SupportedExtensions maps lowercase extensions (and a few exact filenames
// such as "Dockerfile") to language keys. Keys without a dedicated parser
// fall through to the generic parser.
var SupportedExtensions = map[string]string{
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
	".java": "java",
	".c":   "c",
	".h":   "c",
	".cpp": "cpp",
	".hpp": "cpp",
	".cc":  "cpp",
	".cs":  "csharp",
	".go":  "go",
	".php": "php",
	".rs":  "rust",
	".sh":  "shell",
	".ps1": "powershell",
	".css": "css",
	"dockerfile":  "dockerfile",
	".dockerfile": "dockerfile",
	".html": "html",
	".xml":  "xml",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".md":   "markdown",
	".mdx":  "markdown",
	".txt":  "text",
	".sql":  "sql",
}

var (
	ignoredDirNames  []string // name-only patterns
	ignoredDirPaths  []string // patterns containing a path separator
	exactIgnoredFiles = map[string]bool{}
	patternIgnoredFiles []string
)

func init() {
	for _, d := range IgnoredDirs {
		if strings.Contains(d, "/") {
			ignoredDirPaths = append(ignoredDirPaths, d)
		} else {
			ignoredDirNames = append(ignoredDirNames, d)
		}
	}
	for _, f := range IgnoredFiles {
		if strings.ContainsAny(f, "*?[") {
			patternIgnoredFiles = append(patternIgnoredFiles, f)
		} else {
			exactIgnoredFiles[f] = true
		}
	}
}

func isDirIgnored(name, relPath string) bool {
	for _, pattern := range ignoredDirNames {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	rel := filepath.ToSlash(relPath)
	for _, prefix := range ignoredDirPaths {
		prefix = filepath.ToSlash(prefix)
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}
	return false
}

func isFileIgnored(name string) bool {
	if exactIgnoredFiles[name] {
		return true
	}
	for _, pattern := range patternIgnoredFiles {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// languageKeyFor classifies a filename. Full-name matches (e.g. Dockerfile)
// are tried first, then the lowercase extension.
func languageKeyFor(filename string) string {
	lower := strings.ToLower(filename)
	if !strings.Contains(lower, ".") && !strings.HasPrefix(lower, ".") {
		if key, ok := SupportedExtensions[lower]; ok {
			return key
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" {
		if key, ok := SupportedExtensions[ext]; ok {
			return key
		}
	}
	return ""
}

// DiscoverFiles walks repoPath top-down and emits every recognized,
// non-ignored file on the returned channel in walk order. The walk itself
// never fails after validation; unreadable subtrees are logged and skipped.
// Returns an input error when repoPath does not exist or is not a directory.
func DiscoverFiles(repoPath string) (<-chan DiscoveredFile, error) {
	log := logging.Component("discovery")

	absRoot, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInput, "cannot resolve repo path %q", repoPath)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errors.InputError("repo path does not exist: %s", repoPath)
	}
	if !info.IsDir() {
		return nil, errors.InputError("repo path is not a directory: %s", repoPath)
	}

	files := make(chan DiscoveredFile, 100)
	go func() {
		defer close(files)
		walkErr := filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				log.Warn("walk error, skipping subtree", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			rel, relErr := filepath.Rel(absRoot, path)
			if relErr != nil {
				log.Error("could not compute relative path", "path", path, "error", relErr)
				return nil
			}
			if d.IsDir() {
				if path != absRoot && isDirIgnored(d.Name(), rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if isFileIgnored(d.Name()) {
				return nil
			}
			lang := languageKeyFor(d.Name())
			if lang == "" {
				return nil
			}
			files <- DiscoveredFile{AbsPath: path, RelPath: rel, Language: lang}
			return nil
		})
		if walkErr != nil {
			log.Error("repository walk aborted", "root", absRoot, "error", walkErr)
		}
	}()

	return files, nil
}
