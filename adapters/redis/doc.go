/*
Package redis relays integration events over Redis Pub/Sub.
Each event is published as a JSON envelope carrying the bus headers next to the encoded
payload, on the event topic or on one fixed channel.
*/
package redis
