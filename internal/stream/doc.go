// Package stream implements the segmented byte stream that backs one flow of
// a device.
//
// A Stream is a singly linked chain of blocks. The last block is always an
// empty sentinel marking the next append point; head == tail means the stream
// is empty. Appends fill the sentinel and link a fresh one behind it. Reads
// consume from the head, crossing block boundaries and unlinking every block
// they drain.
//
// A Stream is not safe for concurrent use. Callers serialize access with the
// owning flow's lock.
package stream
