package coreactions

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/les2feup/citylink/internal/domain"
)

// vfsReport is the shape every VFS core action emits on the runtime's
// "vfs/report" core event after completing, successfully or not — matching
// the original firmware's {action, error, message} report dict plus its
// _add_timestamp wrapper.
type vfsReport struct {
	Action    string    `json:"action" msgpack:"action"`
	Error     bool      `json:"error" msgpack:"error"`
	Message   any       `json:"message" msgpack:"message"`
	Timestamp timestamp `json:"timestamp" msgpack:"timestamp"`
}

// timestamp mirrors the original firmware's {"epoch": 1970, "seconds": ...}
// shape — MicroPython's RTC epoch is 2000 on most ports, but the reference
// runtime always reported against the Unix (1970) epoch explicitly to
// avoid ambiguity across boards, which this keeps.
type timestamp struct {
	Epoch   int   `json:"epoch" msgpack:"epoch"`
	Seconds int64 `json:"seconds" msgpack:"seconds"`
}

func nowTimestamp() timestamp {
	return timestamp{Epoch: 1970, Seconds: time.Now().Unix()}
}

// report emits the outcome of a VFS action on the vfs/report core event.
// message carries the action's result on success (a listing, file
// contents) or is replaced by the error text on failure.
func (r *Registry) report(rt domain.Runtime, action string, message any, err error) error {
	rep := vfsReport{Action: action, Message: message, Timestamp: nowTimestamp()}
	if err != nil {
		rep.Error = true
		rep.Message = err.Error()
	}
	return rt.EmitCoreEvent("vfs/report", rep, domain.PublishOptions{})
}

// resolvePath joins path under the VFS root. The path is cleaned against a
// virtual "/" first, so ".." segments cannot climb above the root: a path
// like "../../x" resolves to <root>/x rather than being rejected.
func (r *Registry) resolvePath(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(r.vfsRoot, clean)
	rel, err := filepath.Rel(r.vfsRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("coreactions: path %q escapes the vfs root", path)
	}
	return full, nil
}

// vfsPathRequest is the body shape shared by vfs/read and vfs/delete: the
// target path, relative to the VFS root.
type vfsPathRequest struct {
	Path string `json:"path" msgpack:"path"`
}

// vfsListEntry describes one entry in a vfs_list report: its path relative
// to the VFS root plus a type marker, "f" for a file and "d" for a
// directory.
type vfsListEntry struct {
	Path string `json:"path" msgpack:"path"`
	Type string `json:"type" msgpack:"type"`
}

// VFSList walks the writable filesystem root and reports every entry under
// it.
func (r *Registry) VFSList(ctx context.Context, rt domain.Runtime, _ []byte, _ []domain.Param) error {
	var listing []vfsListEntry
	err := filepath.WalkDir(r.vfsRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, relErr := filepath.Rel(r.vfsRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}
		kind := "f"
		if d.IsDir() {
			kind = "d"
		}
		listing = append(listing, vfsListEntry{Path: filepath.ToSlash(rel), Type: kind})
		return nil
	})
	if err != nil {
		return r.report(rt, "vfs_list", nil, err)
	}
	return r.report(rt, "vfs_list", listing, nil)
}

// VFSRead reads the file named in the request body and reports its
// base64-encoded contents.
func (r *Registry) VFSRead(ctx context.Context, rt domain.Runtime, payload []byte, _ []domain.Param) error {
	var req vfsPathRequest
	if err := rt.Decode(payload, &req); err != nil {
		return r.report(rt, "vfs_read", nil, err)
	}
	full, err := r.resolvePath(req.Path)
	if err != nil {
		return r.report(rt, "vfs_read", nil, err)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return r.report(rt, "vfs_read", nil, err)
	}
	return r.report(rt, "vfs_read", base64.StdEncoding.EncodeToString(data), nil)
}

// vfsWriteRequest is the body shape for vfs/write: the target path, the
// data with its checksum, and an optional append flag. Only "crc32" is
// supported as the checksum algorithm — any other tag is rejected outright
// rather than silently skipping verification.
type vfsWriteRequest struct {
	Path    string          `json:"path" msgpack:"path"`
	Payload vfsWritePayload `json:"payload" msgpack:"payload"`
	Append  bool            `json:"append" msgpack:"append"`
}

type vfsWritePayload struct {
	Data string `json:"data" msgpack:"data"` // base64-encoded file contents
	Hash string `json:"hash" msgpack:"hash"` // hex-encoded digest of the decoded bytes
	Algo string `json:"algo" msgpack:"algo"` // digest algorithm tag; only "crc32"
}

// VFSWrite decodes a base64 payload, verifies its checksum, and writes it
// to the named file, creating parent directories as needed. An
// unrecognized algorithm tag aborts before any checksum comparison is even
// attempted; a checksum mismatch aborts before any bytes are written.
func (r *Registry) VFSWrite(ctx context.Context, rt domain.Runtime, payload []byte, _ []domain.Param) error {
	var req vfsWriteRequest
	if err := rt.Decode(payload, &req); err != nil {
		return r.report(rt, "vfs_write", nil, err)
	}
	full, err := r.resolvePath(req.Path)
	if err != nil {
		return r.report(rt, "vfs_write", nil, err)
	}

	if req.Payload.Algo == "" {
		req.Payload.Algo = "crc32"
	}
	if req.Payload.Algo != "crc32" {
		err := fmt.Errorf("%w: %q", domain.ErrUnsupportedDigest, req.Payload.Algo)
		return r.report(rt, "vfs_write", nil, err)
	}
	raw, err := base64.StdEncoding.DecodeString(req.Payload.Data)
	if err != nil {
		return r.report(rt, "vfs_write", nil, err)
	}
	want, err := parseCRC32(req.Payload.Hash)
	if err != nil {
		return r.report(rt, "vfs_write", nil, err)
	}
	if sum := crc32.ChecksumIEEE(raw); sum != want {
		err := fmt.Errorf("%w: got %08x, want %08x", domain.ErrIntegrityFailure, sum, want)
		return r.report(rt, "vfs_write", nil, err)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return r.report(rt, "vfs_write", nil, err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if req.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(full, flags, 0o644)
	if err != nil {
		return r.report(rt, "vfs_write", nil, err)
	}
	_, writeErr := f.Write(raw)
	closeErr := f.Close()
	if writeErr != nil {
		return r.report(rt, "vfs_write", nil, writeErr)
	}
	if closeErr != nil {
		return r.report(rt, "vfs_write", nil, closeErr)
	}
	return r.report(rt, "vfs_write", req.Path, nil)
}

// VFSDelete removes the file named in the request body.
func (r *Registry) VFSDelete(ctx context.Context, rt domain.Runtime, payload []byte, _ []domain.Param) error {
	var req vfsPathRequest
	if err := rt.Decode(payload, &req); err != nil {
		return r.report(rt, "vfs_delete", nil, err)
	}
	full, err := r.resolvePath(req.Path)
	if err != nil {
		return r.report(rt, "vfs_delete", nil, err)
	}
	if err := os.Remove(full); err != nil {
		return r.report(rt, "vfs_delete", nil, err)
	}
	return r.report(rt, "vfs_delete", req.Path, nil)
}
