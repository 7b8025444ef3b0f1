package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription/websocket"
)

func TestSelectSubprotocol(t *testing.T) {
	testCases := []struct {
		name             string
		requestPath      string
		protocolHeader   string
		expectedDecision SubprotocolDecision
		expectedError    bool
	}{
		{
			name:             "should not be applicable for other paths",
			requestPath:      "/other",
			protocolHeader:   "graphql-transport-ws",
			expectedDecision: DecisionNotApplicable,
		},
		{
			name:             "should not be applicable for other paths even with an unknown subprotocol",
			requestPath:      "/graphql/",
			protocolHeader:   "foo-bar",
			expectedDecision: DecisionNotApplicable,
		},
		{
			name:             "should select graphql-transport-ws",
			requestPath:      "/graphql",
			protocolHeader:   "graphql-transport-ws",
			expectedDecision: DecisionGraphQLTransportWS,
		},
		{
			name:             "should select graphql-ws",
			requestPath:      "/graphql",
			protocolHeader:   "graphql-ws",
			expectedDecision: DecisionLegacyGraphQLWS,
		},
		{
			name:             "should fall back to graphql-ws without subprotocol",
			requestPath:      "/graphql",
			protocolHeader:   "",
			expectedDecision: DecisionLegacyGraphQLWS,
		},
		{
			name:             "should ignore surrounding whitespace",
			requestPath:      "/graphql",
			protocolHeader:   " graphql-transport-ws ",
			expectedDecision: DecisionGraphQLTransportWS,
		},
		{
			name:           "should reject unknown subprotocols",
			requestPath:    "/graphql",
			protocolHeader: "foo-bar",
			expectedError:  true,
		},
		{
			name:           "should reject a list of subprotocols",
			requestPath:    "/graphql",
			protocolHeader: "graphql-ws, graphql-transport-ws",
			expectedError:  true,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			decision, err := SelectSubprotocol("/graphql", testCase.requestPath, testCase.protocolHeader)
			if testCase.expectedError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsupportedSubprotocol)

				var unsupportedErr *UnsupportedSubprotocolError
				require.ErrorAs(t, err, &unsupportedErr)
				assert.Equal(t, testCase.protocolHeader, unsupportedErr.Protocol)
				assert.Equal(t, DecisionNotApplicable, decision)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.expectedDecision, decision)
		})
	}
}

func TestSubprotocolDecision(t *testing.T) {
	assert.Equal(t, websocket.ProtocolGraphQLWS, DecisionLegacyGraphQLWS.Protocol())
	assert.Equal(t, websocket.ProtocolGraphQLTransportWS, DecisionGraphQLTransportWS.Protocol())
	assert.Equal(t, websocket.Protocol(""), DecisionNotApplicable.Protocol())

	assert.Equal(t, "graphql-ws", DecisionLegacyGraphQLWS.String())
	assert.Equal(t, "graphql-transport-ws", DecisionGraphQLTransportWS.String())
	assert.Equal(t, "not_applicable", DecisionNotApplicable.String())
}

func TestUpgradeRequest_Decide(t *testing.T) {
	decision, err := UpgradeRequest{Path: "/subscriptions"}.Decide("/subscriptions")
	require.NoError(t, err)
	assert.Equal(t, DecisionLegacyGraphQLWS, decision)
}
