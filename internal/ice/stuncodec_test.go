package ice

import (
	"testing"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/require"
)

func TestBuildBindingRequestRoundTrip(t *testing.T) {
	msg, err := buildBindingRequest("frag1:frag2", 12345, true, 0xdeadbeefcafebabe, true, "localpwd")
	require.NoError(t, err)

	decoded := &stun.Message{Raw: append([]byte(nil), msg.Raw...)}
	require.NoError(t, decoded.Decode())

	require.Equal(t, stun.MethodBinding, decoded.Type.Method)
	require.Equal(t, stun.ClassRequest, decoded.Type.Class)

	require.True(t, decoded.Contains(stun.AttrUseCandidate))
	require.Equal(t, uint32(12345), readPriority(decoded))

	tb, ok := readTiebreaker(decoded, stun.AttrICEControlling)
	require.True(t, ok)
	require.Equal(t, uint64(0xdeadbeefcafebabe), tb)

	require.True(t, verifyIntegrity(decoded, "localpwd"))
	require.False(t, verifyIntegrity(decoded, "wrongpwd"))
	require.True(t, hasFingerprint(decoded))
}

func TestBuildBindingRequestControlledRole(t *testing.T) {
	msg, err := buildBindingRequest("u", 1, false, 42, false, "pwd")
	require.NoError(t, err)

	decoded := &stun.Message{Raw: append([]byte(nil), msg.Raw...)}
	require.NoError(t, decoded.Decode())

	require.False(t, decoded.Contains(stun.AttrUseCandidate))
	tb, ok := readTiebreaker(decoded, stun.AttrICEControlled)
	require.True(t, ok)
	require.Equal(t, uint64(42), tb)

	_, ok = readTiebreaker(decoded, stun.AttrICEControlling)
	require.False(t, ok)
}

func TestBuildBindingSuccessCarriesTransactionID(t *testing.T) {
	req, err := buildBindingRequest("u", 1, true, 1, false, "pwd")
	require.NoError(t, err)
	reqDecoded := &stun.Message{Raw: append([]byte(nil), req.Raw...)}
	require.NoError(t, reqDecoded.Decode())

	resp, err := buildBindingSuccess(reqDecoded, []byte{192, 168, 1, 1}, 9000, "pwd")
	require.NoError(t, err)

	respDecoded := &stun.Message{Raw: append([]byte(nil), resp.Raw...)}
	require.NoError(t, respDecoded.Decode())

	require.Equal(t, reqDecoded.TransactionID, respDecoded.TransactionID)
	require.Equal(t, stun.ClassSuccessResponse, respDecoded.Type.Class)

	xma := &stun.XORMappedAddress{}
	require.NoError(t, xma.GetFrom(respDecoded))
	require.Equal(t, 9000, xma.Port)
}

func TestBuildRoleConflictErrorCode(t *testing.T) {
	req, err := buildBindingRequest("u", 1, true, 1, false, "pwd")
	require.NoError(t, err)
	reqDecoded := &stun.Message{Raw: append([]byte(nil), req.Raw...)}
	require.NoError(t, reqDecoded.Decode())

	resp, err := buildRoleConflictError(reqDecoded, "pwd")
	require.NoError(t, err)

	respDecoded := &stun.Message{Raw: append([]byte(nil), resp.Raw...)}
	require.NoError(t, respDecoded.Decode())

	code, ok := readErrorCode(respDecoded)
	require.True(t, ok)
	require.Equal(t, errorCodeRoleConflict, code)
}

func TestReadPriorityDefaultsToZero(t *testing.T) {
	msg, err := stun.Build(stun.TransactionID, stun.BindingIndication)
	require.NoError(t, err)
	decoded := &stun.Message{Raw: append([]byte(nil), msg.Raw...)}
	require.NoError(t, decoded.Decode())

	require.Equal(t, uint32(0), readPriority(decoded))
}
