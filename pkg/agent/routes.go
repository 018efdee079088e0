package agent

import "github.com/aretw0/hybridqa/pkg/domain"

func routeByStrategy(s domain.SharedState) domain.NodeID {
	if s.Strategy == domain.StrategySQL {
		return NodeSQLGenerator
	}
	// rag and hybrid both start with documents.
	return NodeRetriever
}

func routeAfterRetrieval(s domain.SharedState) domain.NodeID {
	if s.Strategy == domain.StrategyRAG {
		return NodeSynthesizer
	}
	return NodePlanner
}

func (a *Agent) routeAfterSynthesis(s domain.SharedState) domain.NodeID {
	if len(s.Errors) > 0 && s.RepairCount < a.maxRepairs {
		return NodeRepair
	}
	return domain.End
}
