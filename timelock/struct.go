package timelock

import (
	"go.dedis.ch/kyber/v3"
)

type PublicKeyRequest struct {
}

type PublicKeyReply struct {
	Public kyber.Point
}

type ReleaseRequest struct {
	Blob      SealedBlob
	Requester string
	Sig       []byte
}

type ReleaseReply struct {
	Seed []byte
}
