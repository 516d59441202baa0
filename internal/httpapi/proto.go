package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

// maxRequestBody caps request bodies.  A top-up request is well under
// 100 bytes, so 4 KiB is generous.
const maxRequestBody = 4096

const mimeProtobuf = "application/x-protobuf"

// wantsProtobuf reports whether the client asked for a protobuf body, as
// embedded status displays do.
func wantsProtobuf(c *fiber.Ctx) bool {
	accept := c.Get(fiber.HeaderAccept)
	return strings.Contains(accept, mimeProtobuf) ||
		strings.Contains(accept, "application/protobuf")
}

// writeStatusProto encodes the snapshot as a google.protobuf.Struct.
func writeStatusProto(c *fiber.Ctx, snap types.StatusSnapshot) error {
	msg, err := structpb.NewStruct(snap.Map())
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "internal_error", "status encode error")
	}
	return writeProto(c, fiber.StatusOK, msg)
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(c *fiber.Ctx, status int, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "internal_error", "proto marshal error")
	}
	c.Set(fiber.HeaderContentType, mimeProtobuf)
	return c.Status(status).Send(data)
}
