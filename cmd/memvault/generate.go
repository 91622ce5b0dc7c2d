package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

// Character set constants.
const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	minPasswordLength     = 8
	maxPasswordLength     = 256
	defaultPasswordLength = 24
	maxPasswordCount      = 100
	maxExcludeLength      = 256

	minWordCount     = 3
	maxWordCount     = 12
	defaultWordCount = 5
)

// Generate command flags.
var (
	genLength      int
	genCount       int
	genNoSymbols   bool
	genNoNumbers   bool
	genNoUppercase bool
	genNoLowercase bool
	genExclude     string
	genCopy        bool
	genWords       bool
	genWordCount   int
	genSeparator   string
)

func init() {
	rootCmd.AddCommand(genCmd)

	genCmd.Flags().IntVarP(&genLength, "length", "l", defaultPasswordLength, "Password length (8-256)")
	genCmd.Flags().IntVarP(&genCount, "count", "n", 1, "Number of passwords to generate (1-100)")
	genCmd.Flags().BoolVar(&genNoSymbols, "no-symbols", false, "Exclude symbols")
	genCmd.Flags().BoolVar(&genNoNumbers, "no-numbers", false, "Exclude numbers")
	genCmd.Flags().BoolVar(&genNoUppercase, "no-uppercase", false, "Exclude uppercase letters")
	genCmd.Flags().BoolVar(&genNoLowercase, "no-lowercase", false, "Exclude lowercase letters")
	genCmd.Flags().StringVar(&genExclude, "exclude", "", "Characters to exclude")
	genCmd.Flags().BoolVarP(&genCopy, "copy", "c", false, "Copy first result to clipboard (accessible to all processes)")
	genCmd.Flags().BoolVarP(&genWords, "words", "w", false, "Generate a word passphrase instead of a character password")
	genCmd.Flags().IntVar(&genWordCount, "word-count", defaultWordCount, "Words per passphrase (3-12)")
	genCmd.Flags().StringVar(&genSeparator, "separator", "-", "Word separator for passphrases")
}

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate random passwords or passphrases",
	Long: `Generate cryptographically secure random passwords.

Examples:
  # 24-character password (default)
  memvault gen

  # 32 characters, no symbols
  memvault gen -l 32 --no-symbols

  # word passphrase
  memvault gen -w --word-count 6

  # generate and copy
  memvault gen -c

  # exclude ambiguous characters
  memvault gen --exclude "0O1lI"`,
	RunE: executeGen,
}

func executeGen(cmd *cobra.Command, args []string) error {
	if err := validateGenFlags(); err != nil {
		return err
	}

	results := make([]string, genCount)
	for i := 0; i < genCount; i++ {
		var result string
		var err error
		if genWords {
			result, err = generateWordPassphrase(genWordCount, genSeparator)
		} else {
			charset, cerr := buildCharset()
			if cerr != nil {
				return cerr
			}
			result, err = generatePassword(charset, genLength)
		}
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		results[i] = result
	}

	for _, result := range results {
		fmt.Println(result)
	}

	if genCopy && len(results) > 0 {
		if err := clipboard.WriteAll(results[0]); err != nil {
			fmt.Fprintf(os.Stderr, "warning: copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "Copied to clipboard")
		}
	}
	return nil
}

func validateGenFlags() error {
	if genCount < 1 || genCount > maxPasswordCount {
		return fmt.Errorf("count must be between 1 and %d", maxPasswordCount)
	}
	if genWords {
		if genWordCount < minWordCount || genWordCount > maxWordCount {
			return fmt.Errorf("word count must be between %d and %d", minWordCount, maxWordCount)
		}
		return nil
	}
	if genLength < minPasswordLength {
		return fmt.Errorf("password length must be at least %d characters", minPasswordLength)
	}
	if genLength > maxPasswordLength {
		return fmt.Errorf("password length must be at most %d characters", maxPasswordLength)
	}
	if len(genExclude) > maxExcludeLength {
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	return nil
}

// buildCharset builds the character set based on flags.
func buildCharset() (string, error) {
	var charset strings.Builder

	if !genNoLowercase {
		charset.WriteString(charsetLowercase)
	}
	if !genNoUppercase {
		charset.WriteString(charsetUppercase)
	}
	if !genNoNumbers {
		charset.WriteString(charsetDigits)
	}
	if !genNoSymbols {
		charset.WriteString(charsetSymbols)
	}

	result := charset.String()
	if genExclude != "" {
		result = removeChars(result, genExclude)
	}
	if result == "" {
		return "", fmt.Errorf("character set is empty: adjust flags to include at least one character type")
	}
	return result, nil
}

// removeChars removes specified characters from a string.
func removeChars(s, chars string) string {
	excludeSet := make(map[rune]bool)
	for _, c := range chars {
		excludeSet[c] = true
	}

	var result strings.Builder
	for _, c := range s {
		if !excludeSet[c] {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// generatePassword generates a cryptographically secure random password.
func generatePassword(charset string, length int) (string, error) {
	charsetLen := big.NewInt(int64(len(charset)))
	password := make([]byte, length)

	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("generate random number: %w", err)
		}
		password[i] = charset[idx.Int64()]
	}
	return string(password), nil
}

// generateWordPassphrase joins randomly chosen words from the built-in list.
func generateWordPassphrase(count int, separator string) (string, error) {
	listLen := big.NewInt(int64(len(passphraseWords)))
	words := make([]string, count)
	for i := 0; i < count; i++ {
		idx, err := rand.Int(rand.Reader, listLen)
		if err != nil {
			return "", fmt.Errorf("generate random number: %w", err)
		}
		words[i] = passphraseWords[idx.Int64()]
	}
	return strings.Join(words, separator), nil
}

// passphraseWords is a short word list for memorable passphrases. 256 words
// give 8 bits per word; the default 5 words are 40 bits, comparable to a
// random 8-character alphanumeric password.
var passphraseWords = []string{
	"acorn", "alpine", "amber", "anchor", "anvil", "apple", "arrow", "aspen",
	"atlas", "autumn", "badge", "bagel", "bamboo", "banjo", "barley", "basil",
	"beacon", "bison", "blanket", "blossom", "bolt", "bonfire", "boulder", "bramble",
	"brass", "breeze", "brick", "bridge", "bronze", "brook", "bucket", "butter",
	"cabin", "cactus", "candle", "canoe", "canyon", "carbon", "cargo", "castle",
	"cedar", "cello", "chalk", "cherry", "chisel", "cinder", "citrus", "clover",
	"cobalt", "comet", "compass", "copper", "coral", "cotton", "cradle", "crater",
	"cricket", "crystal", "cypress", "daisy", "dapple", "desert", "dewdrop", "dolphin",
	"donkey", "drift", "eagle", "ember", "engine", "fable", "falcon", "feather",
	"fennel", "fern", "fiddle", "flint", "forest", "fossil", "fox", "frost",
	"galaxy", "garden", "garnet", "geyser", "ginger", "glacier", "goose", "granite",
	"grape", "gravel", "grove", "hammer", "harbor", "harvest", "hazel", "heron",
	"hickory", "honey", "horizon", "hunter", "iceberg", "ink", "iris", "iron",
	"island", "ivory", "jade", "jasper", "jigsaw", "jungle", "juniper", "kayak",
	"kernel", "kettle", "kite", "ladder", "lagoon", "lantern", "larch", "laurel",
	"lava", "lemon", "lichen", "lily", "linen", "lizard", "llama", "locust",
	"lotus", "lumber", "lunar", "magnet", "mango", "maple", "marble", "meadow",
	"melon", "mesa", "mint", "mirror", "mocha", "monsoon", "moose", "morsel",
	"mosaic", "moss", "moth", "mountain", "mustard", "nectar", "nettle", "north",
	"nutmeg", "oak", "oasis", "ocean", "olive", "onyx", "orbit", "orchid",
	"osprey", "otter", "owl", "oyster", "paddle", "pagoda", "palm", "panda",
	"paper", "parrot", "pebble", "pecan", "pepper", "pewter", "pigeon", "pine",
	"pistachio", "planet", "plume", "pocket", "polar", "pond", "poplar", "poppy",
	"prairie", "prism", "pumpkin", "quail", "quarry", "quartz", "quill", "quilt",
	"rabbit", "raccoon", "radish", "raft", "raven", "reef", "ribbon", "ridge",
	"ripple", "river", "robin", "rocket", "rooster", "rosemary", "ruby", "rustic",
	"saddle", "saffron", "salmon", "sandal", "sapphire", "satchel", "seagull", "sequoia",
	"shadow", "shale", "shell", "silver", "sketch", "slate", "sparrow", "spice",
	"spiral", "spruce", "squash", "squirrel", "stone", "stork", "storm", "summit",
	"sunset", "swallow", "switch", "tangelo", "tapestry", "teapot", "thistle", "thunder",
	"timber", "topaz", "torch", "trellis", "trout", "tulip", "tundra", "turnip",
	"twilight", "umbrella", "valley", "velvet", "violet", "walnut", "walrus", "willow",
}
