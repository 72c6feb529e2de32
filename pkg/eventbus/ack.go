package eventbus

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// ackSubject is the internal subject an ack token is computed over: the
// consumer name plus the log index being acknowledged, so a token for one
// consumer's message cannot be replayed against another's.
func ackSubject(consumerName string, index uint64) string {
	return consumerName + "#" + strconv.FormatUint(index, 10)
}

// signAck computes the HMAC-SHA256 ack token for a message, per spec.md §6:
// "an HMAC-SHA256 of that subject under the process reply secret."
func signAck(replySecret []byte, consumerName string, index uint64) string {
	mac := hmac.New(sha256.New, replySecret)
	mac.Write([]byte(ackSubject(consumerName, index)))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyAck checks a caller-supplied ack token against the expected value in
// constant time.
func verifyAck(replySecret []byte, consumerName string, index uint64, token string) bool {
	expected := signAck(replySecret, consumerName, index)
	return hmac.Equal([]byte(expected), []byte(token))
}
