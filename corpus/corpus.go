package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/golang/glog"
)

// Stream selects which occurrences of a document a model samples
type Stream int

const (
	// Words are the word occurrences of all sentences, in order
	Words Stream = iota
	// Entities are the external entity mentions of the document
	Entities
)

func (s Stream) String() string {
	switch s {
	case Words:
		return "words"
	case Entities:
		return "entities"
	}
	return fmt.Sprintf("stream(%d)", int(s))
}

// Document is a read-only tokenized document
type Document struct {
	Id        uint32
	Sentences [][]uint32
	Rating    float64
	HasRating bool
	Entities  []uint32
}

// Corpus holds documents in file order, the position of a document
// in Docs is its index in every count table
type Corpus struct {
	VocabSize  uint32
	EntitySize uint32
	DocNum     uint32
	Docs       []*Document
}

type WordCount struct {
	WordId uint32
	Count  uint32
}

func ExpandWords(wcs []*WordCount) []uint32 {
	var words []uint32
	for _, wc := range wcs {
		for i := uint32(0); i < wc.Count; i += 1 {
			words = append(words, wc.WordId)
		}
	}
	return words
}

// Words returns the word occurrences of all sentences flattened
func (d *Document) Words() []uint32 {
	var words []uint32
	for _, s := range d.Sentences {
		words = append(words, s...)
	}
	return words
}

// Items returns the occurrences of the d-th document for stream s
func (c *Corpus) Items(d uint32, s Stream) []uint32 {
	doc := c.Docs[d]
	if s == Entities {
		return doc.Entities
	}
	return doc.Words()
}

// ItemSize is the vocabulary size of stream s
func (c *Corpus) ItemSize(s Stream) uint32 {
	if s == Entities {
		return c.EntitySize
	}
	return c.VocabSize
}

// Add appends a document and grows the vocabulary sizes
func (c *Corpus) Add(doc *Document) {
	for _, s := range doc.Sentences {
		for _, w := range s {
			if w+1 > c.VocabSize {
				c.VocabSize = w + 1
			}
		}
	}
	for _, e := range doc.Entities {
		if e+1 > c.EntitySize {
			c.EntitySize = e + 1
		}
	}
	c.Docs = append(c.Docs, doc)
	c.DocNum = uint32(len(c.Docs))
}

// load training data from file, the file format should be like:
// [docId wordId:wordCount wordId ... | wordId ... @rating=4.5 @entities=1,7]
// a lone "|" ends a sentence, "@" tokens annotate the document.
func (c *Corpus) Load(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := c.Read(f); err != nil {
		return fmt.Errorf("load corpus %s: %w", fn, err)
	}

	log.Infof("number of documents %d", c.DocNum)
	log.Infof("vocabulary size %d, entity vocabulary size %d", c.VocabSize, c.EntitySize)
	return nil
}

// Read parses documents from r, see Load for the format
func (c *Corpus) Read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx += 1
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		doc, err := parseDocument(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineIdx, err)
		}
		c.Add(doc)
	}
	return scanner.Err()
}

func parseDocument(line string) (*Document, error) {
	vals := strings.Fields(line)
	if len(vals) < 2 {
		return nil, fmt.Errorf("bad document: %s", line)
	}

	docId, err := strconv.ParseUint(vals[0], 10, 32)
	if err != nil {
		return nil, err
	}
	doc := &Document{Id: uint32(docId)}

	var sentence []uint32
	for _, tok := range vals[1:] {
		switch {
		case tok == "|":
			if len(sentence) > 0 {
				doc.Sentences = append(doc.Sentences, sentence)
			}
			sentence = nil
		case strings.HasPrefix(tok, "@"):
			parseAnnotation(doc, tok)
		default:
			wc, err := parseWordCount(tok)
			if err != nil {
				return nil, err
			}
			if wc == nil {
				continue
			}
			sentence = append(sentence, ExpandWords([]*WordCount{wc})...)
		}
	}
	if len(sentence) > 0 {
		doc.Sentences = append(doc.Sentences, sentence)
	}
	return doc, nil
}

// parseWordCount parses "wordId" or "wordId:count", a malformed
// count is logged and skipped while a malformed word id fails
func parseWordCount(tok string) (*WordCount, error) {
	wc := strings.Split(tok, ":")
	if len(wc) > 2 {
		log.Warningf("bad word count: %s", tok)
		return nil, nil
	}

	wordId, err := strconv.ParseUint(wc[0], 10, 32)
	if err != nil {
		return nil, err
	}
	count := uint64(1)
	if len(wc) == 2 {
		count, err = strconv.ParseUint(wc[1], 10, 32)
		if err != nil {
			log.Warningf("bad word count: %s", tok)
			return nil, nil
		}
	}
	return &WordCount{WordId: uint32(wordId), Count: uint32(count)}, nil
}

func parseAnnotation(doc *Document, tok string) {
	kv := strings.SplitN(tok[1:], "=", 2)
	if len(kv) != 2 {
		log.Warningf("bad annotation: %s", tok)
		return
	}
	switch kv[0] {
	case "rating":
		rating, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			log.Warningf("bad rating: %s", tok)
			return
		}
		doc.Rating = rating
		doc.HasRating = true
	case "entities":
		for _, e := range strings.Split(kv[1], ",") {
			if e == "" {
				continue
			}
			id, err := strconv.ParseUint(e, 10, 32)
			if err != nil {
				log.Warningf("bad entity id %q in %s", e, tok)
				continue
			}
			doc.Entities = append(doc.Entities, uint32(id))
		}
	default:
		log.Warningf("unknown annotation: %s", tok)
	}
}

// LoadVocabulary reads one token per line, the line index is the id
func LoadVocabulary(fn string) ([]string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vocab []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		vocab = append(vocab, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vocab, nil
}
