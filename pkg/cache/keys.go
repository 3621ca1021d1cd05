package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	responseKeyPrefix = "agent:response:"
	toolKeyPrefix     = "agent:tool:"
)

// ResponseKey builds the full-response cache key from the inbound message and
// the conversation history it arrived with. Identical (message, history)
// pairs hash identically regardless of session id.
func ResponseKey(message string, history any) string {
	payload, err := json.Marshal(map[string]any{
		"message": message,
		"history": history,
	})
	if err != nil {
		// Fall back to message-only keying; history that cannot marshal would
		// not have cached anyway.
		payload = []byte(message)
	}
	return responseKeyPrefix + hashHex(payload)
}

// ToolKey builds the per-tool-result cache key. Arguments are serialized with
// sorted keys so equivalent argument maps hash identically. Keys with a "_"
// prefix are injected by the engine (caller identity and the like) and are
// excluded from the hash.
func ToolKey(toolName string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		val, err := json.Marshal(args[k])
		if err != nil {
			val = []byte(fmt.Sprintf("%v", args[k]))
		}
		fmt.Fprintf(&b, "%s=%s;", k, val)
	}

	return toolKeyPrefix + toolName + ":" + hashHex([]byte(b.String()))
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
