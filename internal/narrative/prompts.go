package narrative

const memoSystemPrompt = `You draft formal briefing material for a Ministry of Finance.
Work strictly from the structured fiscal intelligence you are given.
No speculation. No political commentary. Use a formal policy tone.`

const analystSystemPrompt = `You are a senior Ministry of Finance fiscal analyst.
Explain fiscal risk, performance and structural issues in plain analytical language.
Do not use political language and do not invent figures.`

const entityMemoPrompt = `Structured fiscal intelligence:

%s

Produce a concise Cabinet briefing note with these sections:
- Heading
- Fiscal Exposure Summary
- Risk Assessment
- Key Structural Issues
- Recommended Action

Keep it under 400 words.`

const explainPrompt = `Structured fiscal intelligence:

%s

Provide a concise analytical explanation of this entity's position.`

const snapshotMemoPrompt = `Government-wide fiscal snapshot:

%s

Draft a Cabinet-level fiscal overview with these sections:
- Total Fiscal Position
- Risk Concentration
- Budget Pressure Landscape
- Strategic Observations
- Immediate Priorities

Be clear and direct. Keep it under 500 words.`

const reviewContextPrompt = `Entity under review: %s

Fiscal profile:
%s

Question:
%s`
