/*
Package rabbitmq relays integration events to RabbitMQ.
It maps PublishIntegration to an AMQP publish on a topic exchange, includes an auto-reconnect
publisher, and supports optional header propagation via a bus.HeaderPropagator.
*/
package rabbitmq
