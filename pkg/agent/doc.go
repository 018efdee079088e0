/*
Package agent wires retrieval, reasoning and a query backend into the hybrid
question-answering workflow and runs one question to completion.

The topology is:

	router --rag/hybrid--> retriever --rag--> synthesizer
	router --sql---------> sql_generator      retriever --else--> planner --> sql_generator
	sql_generator --> executor --> synthesizer
	synthesizer --errors and repairs left--> repair --> sql_generator
	synthesizer --otherwise--> end

Capability failures are absorbed into the state and never abort a run.
*/
package agent
