package runtime

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"

	"support-relay/errors"
	"support-relay/moderation"
)

//go:embed censored/*
var censoredFolder embed.FS

// CensoredData carries the result of the loading process including metadata for logging.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads and parses blacklisted words from embedded files.
type CensoredLoader struct {
	fs embed.FS
}

func NewCensoredLoader(f embed.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// LoadAll scans the given directory in the embedded FS, treating each .txt
// file as one language dictionary and merging their contents into a unique
// word list. The filename names the language; a detection pass over the
// file's content is logged next to it to catch mislabeled lists early.
func (l *CensoredLoader) LoadAll(path string, log *slog.Logger) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, path)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		lang := strings.TrimSuffix(entry.Name(), ".txt")
		languages = append(languages, lang)

		data, err := l.fs.ReadFile(path + "/" + entry.Name())
		if err != nil {
			return nil, err
		}

		var fileWords []string
		// A scanner handles \n and \r\n line endings alike.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				fileWords = append(fileWords, line)
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}

		if log != nil && len(fileWords) > 0 {
			info := whatlanggo.Detect(strings.Join(fileWords, " "))
			log.Debug(fmt.Sprintf("Censored list %s loaded", entry.Name()),
				"declared_lang", lang,
				"detected_lang", info.Lang.Iso6391(),
				"words", len(fileWords))
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}

	return &CensoredData{Words: words, Languages: languages}, nil
}

// BuildCensor loads the embedded word lists and returns the masking function
// installed on the Lifecycle. Returns nil when replacement is the zero rune,
// which disables moderation entirely.
func BuildCensor(log *slog.Logger, replacement rune) (func(string) string, error) {
	if replacement == 0 {
		return nil, nil
	}

	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll("censored", log)
	if err != nil {
		return nil, err
	}

	log.Info(fmt.Sprintf("%d censored lists loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	masker, err := moderation.NewMasker(data.Words, replacement)
	if err != nil {
		return nil, err
	}
	return masker.Mask, nil
}
