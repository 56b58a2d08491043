package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitebooks/sitebooks/internal/importer"
	"github.com/sitebooks/sitebooks/internal/ledger"
)

const maxUpload = 16 << 20

// readUpload reads the "file" part with the reader its extension selects and
// the mapping from the optional "mapping" JSON field, detecting it from the
// header row when absent.
func (h *handler) readUpload(c *gin.Context) (importer.Table, importer.ColumnMapping, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		return importer.Table{}, importer.ColumnMapping{}, fmt.Errorf("file: %w", err)
	}
	rd := h.Readers.ForFile(fh.Filename)
	if rd == nil {
		return importer.Table{}, importer.ColumnMapping{}, fmt.Errorf("unsupported file type %q", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return importer.Table{}, importer.ColumnMapping{}, err
	}
	defer f.Close()

	t, err := rd.Read(f)
	if err != nil {
		return importer.Table{}, importer.ColumnMapping{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}

	var m importer.ColumnMapping
	if raw := c.PostForm("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return importer.Table{}, importer.ColumnMapping{}, fmt.Errorf("mapping: %w", err)
		}
	} else {
		m = importer.DetectMapping(t.Columns)
	}
	return t, m, nil
}

func (h *handler) parseImport(c *gin.Context) {
	t, m, err := h.readUpload(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Reconciler.Parse(c.Request.Context(), actorOf(c), t, m)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// commitImport parses the upload again, drops the candidates named by the
// repeatable "exclude" field, and commits only a clean batch.
func (h *handler) commitImport(c *gin.Context) {
	t, m, err := h.readUpload(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	opts := importer.CommitOptions{PostAfterCommit: h.PostAfterCommit}
	if raw := c.PostForm("postAfterCommit"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, fmt.Errorf("postAfterCommit: %w", err))
			return
		}
		opts.PostAfterCommit = v
	}

	actor := actorOf(c)
	parsed, err := h.Reconciler.Parse(c.Request.Context(), actor, t, m)
	if err != nil {
		h.fail(c, err)
		return
	}
	parsed = parsed.Exclude(excludedKeys(c))
	if err := importer.CheckCommittable(parsed); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"kind":  ledger.FailureKind(err),
			"error": err.Error(),
			"parse": parsed,
		})
		return
	}

	res, err := h.Reconciler.Commit(c.Request.Context(), actor, parsed.Vouchers, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// excludedKeys accepts "exclude" repeated or as a comma separated list.
func excludedKeys(c *gin.Context) []string {
	var keys []string
	for _, v := range c.PostFormArray("exclude") {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}
