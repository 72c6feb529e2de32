/*
Package security provides the cryptographic primitives Aruna needs at rest:
AES-256-GCM encryption for hook callback secrets (bearer tokens, S3
credential pairs embedded in an external hook's Basic template) and the
process encryption key used to protect them.

# Key derivation

The process encryption key is a 32-byte key, either supplied directly in
configuration or derived deterministically from an instance identifier:

	processKey = SHA-256(instanceID)

Same instance id always yields the same key, so the key itself never needs
to be persisted.

# Secrets

	Plaintext → AES-256-GCM(processKey, randomNonce) → [nonce || ciphertext || tag]

SecretsManager.SealHookSecret/OpenHookSecret wrap this for hook-scoped
secrets; Encrypt/Decrypt operate on the process-wide key directly. No other
package in this module calls into pkg/security; pkg/eventbus signs its ack
tokens with the configured reply secret on its own.

GCM's authentication tag means any tampering with stored ciphertext is
detected on decrypt rather than silently producing garbage plaintext.
*/
package security
