// Package keys holds miner identity material and the detached-signature
// primitives of the submission protocol.
//
// An identity is an asymmetric key pair: the private half is held
// exclusively by one miner for the process lifetime and never transmitted;
// the public half, rendered as "<alg>:" + base64, is the miner's durable
// identifier. The verifier resolves miner IDs to public keys through a
// Directory loaded out of band.
//
// Stable (SemVer-protected):
//   - Identity signing and VerifyHexSignature, the two halves of the
//     detached-signature contract.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore and related functions). These
//     are local-first utilities and not part of the long-term protocol
//     contract.
package keys
