// Package coreactions implements the runtime's built-in action set: the
// handlers every device exposes regardless of its declared model, covering
// firmware delivery, filesystem access, the default property setter, and a
// clean reload. These are the Go reshaping of the original firmware's
// umqtt_core._core_actions module and ssa._action_handler.firmware_update
// function.
package coreactions

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/les2feup/citylink/internal/domain"
)

// FirmwareUpdateRequest is the expected body of a firmware_update action:
// a base64-encoded payload plus the CRC-32 of the decoded bytes,
// hex-encoded.
type FirmwareUpdateRequest struct {
	Base64 string `json:"base64" msgpack:"base64"`
	CRC32  string `json:"crc32" msgpack:"crc32"`
}

// firmwarePath is where a verified update is written. The original
// firmware rewrote user/app.py for the interpreter to pick up on next
// boot; the idiomatic Go equivalent is a Go plugin the bootstrap package
// loads with plugin.Open, so the update target is user/app.so instead.
func (r *Registry) firmwarePath() string {
	return filepath.Join(r.vfsRoot, "user", "app.so")
}

// FirmwareUpdate decodes, CRC-32 verifies, and persists a new user plugin,
// then requests a reset so the bootstrap reloads it. The checksum algorithm
// is fixed at IEEE 802.3 (the same polynomial the original firmware's
// binascii.crc32 computes): firmware delivery happens over an
// already-authenticated broker session, so CRC-32 here is an
// accidental-corruption check, not a security boundary.
func (r *Registry) FirmwareUpdate(ctx context.Context, rt domain.Runtime, payload []byte, _ []domain.Param) error {
	var req FirmwareUpdateRequest
	if err := rt.Decode(payload, &req); err != nil {
		return fmt.Errorf("coreactions: firmware_update: decode request: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(req.Base64)
	if err != nil {
		return fmt.Errorf("coreactions: firmware_update: decode base64: %w", err)
	}

	want, err := parseCRC32(req.CRC32)
	if err != nil {
		return fmt.Errorf("coreactions: firmware_update: %w", err)
	}
	if sum := crc32.ChecksumIEEE(raw); sum != want {
		return fmt.Errorf("%w: got %08x, want %08x", domain.ErrIntegrityFailure, sum, want)
	}

	dest := r.firmwarePath()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("coreactions: firmware_update: prepare destination: %w", err)
	}
	if err := os.WriteFile(dest, raw, 0o755); err != nil {
		return fmt.Errorf("coreactions: firmware_update: write plugin: %w", err)
	}
	slog.Info("firmware_update: wrote plugin", "path", dest, "size", humanize.Bytes(uint64(len(raw))))

	rt.RequestReset("firmware_update")
	return nil
}

// parseCRC32 parses a hex-encoded CRC-32, accepting an optional 0x prefix.
func parseCRC32(s string) (uint32, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad crc32 %q: %w", s, err)
	}
	return uint32(v), nil
}
