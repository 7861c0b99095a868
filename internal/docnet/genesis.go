package docnet

import (
	"encoding/base32"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"
)

// Stream ids are "k" + base32(blake3(cbor(genesis))). Core deterministic encoding makes
// the id independent of JSON key order.
var (
	genesisEncMode cbor.EncMode
	genesisDecMode cbor.DecMode

	streamIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

func init() {
	var err error
	genesisEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("docnet: CBOR encoder initialization failed: " + err.Error())
	}
	genesisDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("docnet: CBOR decoder initialization failed: " + err.Error())
	}
}

type genesisEnvelope struct {
	Header  GenesisHeader `cbor:"header"`
	Content any           `cbor:"content"`
}

// EncodeGenesis returns the canonical CBOR bytes of g.
func EncodeGenesis(g Genesis) ([]byte, error) {
	var content any
	if len(g.Content) > 0 {
		if err := json.Unmarshal(g.Content, &content); err != nil {
			return nil, fmt.Errorf("genesis content: %w", err)
		}
	}
	return genesisEncMode.Marshal(genesisEnvelope{Header: g.Header, Content: content})
}

// DecodeGenesis is the inverse of EncodeGenesis.
func DecodeGenesis(b []byte) (Genesis, error) {
	var env genesisEnvelope
	if err := genesisDecMode.Unmarshal(b, &env); err != nil {
		return Genesis{}, fmt.Errorf("decode genesis: %w", err)
	}
	content, err := json.Marshal(env.Content)
	if err != nil {
		return Genesis{}, fmt.Errorf("decode genesis: %w", err)
	}
	return Genesis{Header: env.Header, Content: content}, nil
}

// GenesisStreamID derives the stream id of g.
func GenesisStreamID(g Genesis) (string, error) {
	b, err := EncodeGenesis(g)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return "k" + strings.ToLower(streamIDEncoding.EncodeToString(sum[:])), nil
}

// NewGenesis builds a genesis commit. Deterministic streams carry no nonce so the
// same metadata and content always map to the same stream.
func NewGenesis(content any, meta Metadata, deterministic bool) (Genesis, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return Genesis{}, fmt.Errorf("genesis content: %w", err)
	}
	h := GenesisHeader{Metadata: meta}
	if !deterministic {
		h.Nonce = ulid.Make().String()
	}
	return Genesis{Header: h, Content: raw}, nil
}
