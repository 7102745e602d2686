package storage

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
)

const archiveRoot = "ingest-runs/"

// ArchiveKey is the object key of one ingestion batch: ingest-runs/<board>/<batch>.json.
func ArchiveKey(boardID uint, batchID string) string {
	return BoardPrefix(boardID) + batchID + ".json"
}

// BoardPrefix is the key prefix holding every batch of a board.
func BoardPrefix(boardID uint) string {
	return archiveRoot + strconv.FormatUint(uint64(boardID), 10) + "/"
}

// ParseArchiveKey splits a key built by ArchiveKey.
func ParseArchiveKey(key string) (boardID uint, batchID string, ok bool) {
	rest, found := strings.CutPrefix(key, archiveRoot)
	if !found {
		return 0, "", false
	}
	board, file, found := strings.Cut(rest, "/")
	if !found {
		return 0, "", false
	}
	id, err := strconv.ParseUint(board, 10, 64)
	if err != nil || id == 0 {
		return 0, "", false
	}
	batchID, found = strings.CutSuffix(file, ".json")
	if !found || batchID == "" || strings.Contains(batchID, "/") {
		return 0, "", false
	}
	return uint(id), batchID, true
}

// isMissingObject reports whether a stat or remove failed because the key does not exist.
func isMissingObject(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound
}
