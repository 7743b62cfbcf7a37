// Package serializer implements the wire-codec port: encoding and decoding
// the payloads carried over property, event, and action topics. The
// original firmware used a single implicit JSON codec; the Go runtime
// exposes it as a swappable port so a deployment can trade JSON's
// debuggability for MessagePack's smaller frames without touching any
// other component.
package serializer

// Codec encodes Go values to and from wire bytes for transport publish and
// incoming action payloads.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error

	// Name identifies the codec in logs and the debug HTTP surface.
	Name() string
}
