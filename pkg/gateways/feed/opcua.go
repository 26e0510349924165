package feed

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

const opcuaReadMaxAge = 2000

type nodeReader interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
}

// OPCUAFeed reads one OPC-UA node per signal on demand
type OPCUAFeed struct {
	client *opcua.Client
	reader nodeReader
	nodes  map[entities.Signal]*ua.NodeID

	mu     sync.Mutex
	rounds map[entities.Signal]uint64
}

func NewOPCUAFeed(ctx context.Context, conf entities.OPCUAConfig, nodes map[entities.Signal]string) (*OPCUAFeed, error) {
	parsed, err := parseNodes(nodes)
	if err != nil {
		return nil, err
	}
	client, err := opcua.NewClient(conf.Endpoint, buildClientOptions(conf)...)
	if err != nil {
		return nil, errors.Wrap(err, "opcua new client")
	}
	if err := client.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "opcua connect")
	}
	f := newOPCUAFeed(client, parsed)
	f.client = client
	return f, nil
}

func newOPCUAFeed(reader nodeReader, nodes map[entities.Signal]*ua.NodeID) *OPCUAFeed {
	return &OPCUAFeed{
		reader: reader,
		nodes:  nodes,
		rounds: make(map[entities.Signal]uint64),
	}
}

func parseNodes(nodes map[entities.Signal]string) (map[entities.Signal]*ua.NodeID, error) {
	parsed := make(map[entities.Signal]*ua.NodeID, len(nodes))
	for signal, node := range nodes {
		id, err := ua.ParseNodeID(node)
		if err != nil {
			return nil, errors.Wrapf(err, "parse node id %q", node)
		}
		parsed[signal] = id
	}
	return parsed, nil
}

func (f *OPCUAFeed) LatestReading(ctx context.Context, signal entities.Signal) (entities.Reading, error) {
	nodeID, ok := f.nodes[signal]
	if !ok {
		return entities.Reading{}, Unavailable(signal, errors.New("no node configured"))
	}
	req := &ua.ReadRequest{
		MaxAge:             opcuaReadMaxAge,
		NodesToRead:        []*ua.ReadValueID{{NodeID: nodeID, AttributeID: ua.AttributeIDValue}},
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	}
	resp, err := f.reader.Read(ctx, req)
	if err != nil {
		return entities.Reading{}, Unavailable(signal, err)
	}
	if resp == nil || len(resp.Results) == 0 {
		return entities.Reading{}, Unavailable(signal, errors.New("empty read response"))
	}
	result := resp.Results[0]
	if result.Status != ua.StatusOK {
		return entities.Reading{}, Unavailable(signal, fmt.Errorf("read status %s", result.Status))
	}
	if result.Value == nil {
		return entities.Reading{}, Unavailable(signal, errors.New("read returned no value"))
	}
	value, ok := variantToInt(result.Value)
	if !ok {
		return entities.Reading{}, Unavailable(signal, fmt.Errorf("unsupported value %v (%T)", result.Value.Value(), result.Value.Value()))
	}

	ts := result.ServerTimestamp
	if ts.IsZero() {
		ts = result.SourceTimestamp
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return entities.Reading{Signal: signal, Value: value, RoundID: f.nextRound(signal), Timestamp: ts}, nil
}

func (f *OPCUAFeed) nextRound(signal entities.Signal) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds[signal]++
	return f.rounds[signal]
}

func (f *OPCUAFeed) Close(ctx context.Context) error {
	if f.client == nil {
		return nil
	}
	return f.client.Close(ctx)
}

func buildClientOptions(conf entities.OPCUAConfig) []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(conf.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(conf.SecurityPolicy)),
		opcua.ApplicationName(conf.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if conf.Username != "" {
		opts = append(opts, opcua.AuthUsername(conf.Username, conf.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

// variantToInt truncates floating point values towards zero and rejects
// values an int64 cannot hold
func variantToInt(v *ua.Variant) (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.Value().(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case float32:
		return floatToInt(float64(val))
	case float64:
		return floatToInt(val)
	case int8:
		return int64(val), true
	case uint8:
		return int64(val), true
	case int16:
		return int64(val), true
	case uint16:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint32:
		return int64(val), true
	case int64:
		return val, true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	default:
		return 0, false
	}
}

// floatToInt accepts finite values inside [-2^63, 2^63)
func floatToInt(val float64) (int64, bool) {
	if math.IsNaN(val) || val < math.MinInt64 || val >= math.MaxInt64 {
		return 0, false
	}
	return int64(val), true
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}
