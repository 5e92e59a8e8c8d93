// Package projection turns storage rows into client records.
//
// An Engine projects a batch of ServerRecords of one model against a parsed
// selection. Every selected top-level field is resolved once for the whole
// batch by one of the batched resolvers:
//
//   - DirectCopy copies the raw value under the field's key.
//   - Embedded projects an inline document against the target model.
//   - NestedByID looks up every referenced id with one backend call.
//   - RelationByFilter looks up every related record with one filtered call
//     and groups the results by owner.
//   - Association calls an externally registered batched function.
//
// Fields resolve concurrently. Each resolver writes only its own staging
// slot, so the batch is assembled without locks. After all fields resolve,
// the model's permission gate filters each record and the result is built
// in the model's declaration order.
//
// The Bridge binds each client schema to exactly one ServerModel that says
// which resolver backs each field; unbound fields fall back to DirectCopy.
package projection
