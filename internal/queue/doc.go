// Package queue moves job payloads between the gateway and workers.
//
// Three backends exist. AMQP gives durable queues with broker-side
// redelivery tracking. Redis gives a lightweight list-based queue with
// at-most-once delivery. The in-process memory broker backs tests and
// keeps the same redelivery semantics as AMQP.
package queue
