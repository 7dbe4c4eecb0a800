package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/models"
)

const IdeaRefinerID = "idea-refiner"

// Input keys read by the idea refiner.
const (
	InputIdea         = "idea"
	InputBusinessName = "business_name"
	InputTargetMarket = "target_market"
)

const (
	KeyProblem          = "problem"
	KeyValueProposition = "value_proposition"
	KeyMission          = "mission"
)

type ProblemStatement struct {
	Idea         string   `json:"idea"`
	Problem      string   `json:"problem"`
	TargetMarket string   `json:"target_market"`
	Assumptions  []string `json:"assumptions"`
}

type ValueDraft struct {
	Statement string   `json:"statement"`
	Benefits  []string `json:"benefits"`
}

type Mission struct {
	Statement string `json:"statement"`
	Name      string `json:"name,omitempty"`
}

var errNoIdea = errors.New("a business idea is required")

// NewIdeaRefiner clarifies the problem, drafts a value proposition and writes a
// mission statement. The idea comes from the "idea" input or the stored profile.
func NewIdeaRefiner(agent catalog.Agent) *Pipeline {
	return &Pipeline{
		Agent: agent,
		Steps: []Step{
			{Key: KeyProblem, Name: "problem clarifier", Run: SubAgentFunc(clarifyProblem)},
			{Key: KeyValueProposition, Name: "value proposition drafter", Run: SubAgentFunc(draftValue)},
			{Key: KeyMission, Name: "mission writer", Run: SubAgentFunc(writeMission)},
		},
		Compose:  composeIdeaRefiner,
		Metadata: models.OutputMetadata{TokensUsed: 900, Confidence: 0.8},
	}
}

func stringInput(ec *ExecutionContext, key string) string {
	s, _ := ec.Input[key].(string)
	return strings.TrimSpace(s)
}

func clarifyProblem(ctx context.Context, ec *ExecutionContext) (any, error) {
	idea := stringInput(ec, InputIdea)
	if idea == "" {
		idea = strings.TrimSpace(ec.Business.CompanyProfile.BusinessIdea)
	}
	if idea == "" {
		return nil, errNoIdea
	}
	market := stringInput(ec, InputTargetMarket)
	if market == "" {
		market = ec.Business.CompanyProfile.TargetMarket
	}
	if market == "" {
		market = "Small and medium-sized businesses"
	}
	return ProblemStatement{
		Idea:         idea,
		Problem:      fmt.Sprintf("%s today rely on manual workarounds for what %q solves, costing time and money.", market, idea),
		TargetMarket: market,
		Assumptions: []string{
			"The problem occurs at least weekly",
			"Existing tools are too generic or too expensive",
			"Buyers can adopt a new tool without IT involvement",
		},
	}, nil
}

func draftValue(ctx context.Context, ec *ExecutionContext) (any, error) {
	problem, err := inputAs[ProblemStatement](ec, KeyProblem)
	if err != nil {
		return nil, err
	}
	return ValueDraft{
		Statement: fmt.Sprintf("%s, without the manual work.", problem.Idea),
		Benefits: []string{
			"Hours saved every week",
			"Fewer errors from copy-paste processes",
			"Setup in minutes",
		},
	}, nil
}

func writeMission(ctx context.Context, ec *ExecutionContext) (any, error) {
	problem, err := inputAs[ProblemStatement](ec, KeyProblem)
	if err != nil {
		return nil, err
	}
	name := stringInput(ec, InputBusinessName)
	if name == "" {
		name = ec.Business.CompanyProfile.BusinessName
	}
	return Mission{
		Statement: fmt.Sprintf("Give %s their time back.", strings.ToLower(problem.TargetMarket)),
		Name:      name,
	}, nil
}

func composeIdeaRefiner(ec *ExecutionContext, _ map[string]any) (string, models.ContextUpdate, error) {
	problem, err := inputAs[ProblemStatement](ec, KeyProblem)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	value, err := inputAs[ValueDraft](ec, KeyValueProposition)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}
	mission, err := inputAs[Mission](ec, KeyMission)
	if err != nil {
		return "", models.ContextUpdate{}, err
	}

	profile := ec.Business.CompanyProfile
	profile.ProjectID = ec.Business.ProjectID
	profile.BusinessIdea = problem.Idea
	profile.ProblemStatement = problem.Problem
	profile.TargetMarket = problem.TargetMarket
	profile.ValueProposition = value.Statement
	profile.MissionStatement = mission.Statement
	if mission.Name != "" {
		profile.BusinessName = mission.Name
	}

	summary := fmt.Sprintf("Refined idea for %s. Value proposition: %s Mission: %s",
		strings.ToLower(problem.TargetMarket), value.Statement, mission.Statement)
	return summary, models.ContextUpdate{CompanyProfile: &profile}, nil
}
